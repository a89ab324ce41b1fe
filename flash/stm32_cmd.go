package flash

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

// execCmd will run the specified command and check that it is ACK'd
func (s *STM32) execCmd(c CommandCode) error {
	if err := s.link.Write(s.commandSequence(c)); err != nil {
		return err
	}
	return s.readAckOrNack(STMTimeout)
}

// cmdSync will sync the bootloader baud rate
func (s *STM32) cmdSync() error {
	return s.execCmd(CommandCodeSync)
}

// cmdGet will load the bootloader version and its command codes
func (s *STM32) cmdGet() error {
	if err := s.execCmd(CommandCodeGet); err != nil {
		return err
	}

	bs, err := s.readWithLength()
	if err != nil {
		return err
	}
	if err = s.readAckOrNack(STMTimeout); err != nil {
		return err
	}

	s.bootloaderVersion = bs[0]
	for i, code := range bs[1:] {
		s.cmdCodes[CommandCode(i)] = code
	}

	return nil
}

// cmdGetID will return the PID of the microcontroller
func (s *STM32) cmdGetID() (string, error) {
	if err := s.execCmd(CommandCodeGetID); err != nil {
		return "", err
	}

	bs, err := s.readWithLength()
	if err != nil {
		return "", err
	}
	if err = s.readAckOrNack(STMTimeout); err != nil {
		return "", err
	}

	return hex.EncodeToString(bs), nil
}

// cmdEraseMemory will request that all flash memory be erased. Parts that
// report the extended erase command need the two byte global erase code.
func (s *STM32) cmdEraseMemory() error {
	if err := s.execCmd(CommandCodeErase); err != nil {
		return errors.Wrap(err, "erase command")
	}

	// global erase codes followed by their checksum
	req := []byte{0xff, 0x00}
	if s.commandByte(CommandCodeErase) == stmExtendedErase {
		req = []byte{0xff, 0xff, checksum([]byte{0xff, 0xff})}
	}

	if err := s.link.Write(req); err != nil {
		return err
	}

	return s.readAckOrNack(STMEraseTimeout)
}
