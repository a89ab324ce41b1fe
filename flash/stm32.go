package flash

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const b_STM_ACK byte = 0x79
const b_STM_NACK byte = 0x1f
const b_STM_SYNC byte = 0x7f

var STMTimeout = 5 * time.Second

// STMEraseTimeout bounds a mass erase, which takes seconds on large parts
var STMEraseTimeout = 40 * time.Second

var ErrSTMFailedToAck = errors.New("failed to read ack or nack from stm microcontroller")
var ErrSTMNACK = errors.New("received nack from stm microcontroller")

type CommandCode int

// these must be the index of the bytes as received in the get data call
const (
	CommandCodeSync             CommandCode = -1
	CommandCodeGet              CommandCode = 0
	CommandCodeGetVersion       CommandCode = 1
	CommandCodeGetID            CommandCode = 2
	CommandCodeReadMemory       CommandCode = 3
	CommandCodeGo               CommandCode = 4
	CommandCodeWriteMemory      CommandCode = 5
	CommandCodeErase            CommandCode = 6
	CommandCodeWriteProtect     CommandCode = 7
	CommandCodeWriteUnprotect   CommandCode = 8
	CommandCodeReadoutProtect   CommandCode = 9
	CommandCodeReadoutUnprotect CommandCode = 10
)

const stmExtendedErase byte = 0x44

type commandCodeMap map[CommandCode]byte

var defaultCmdCodeMap = commandCodeMap{
	CommandCodeGet:              0x00,
	CommandCodeGetVersion:       0x01,
	CommandCodeGetID:            0x02,
	CommandCodeReadMemory:       0x11,
	CommandCodeGo:               0x21,
	CommandCodeWriteMemory:      0x31,
	CommandCodeErase:            0x43,
	CommandCodeWriteProtect:     0x63,
	CommandCodeWriteUnprotect:   0x73,
	CommandCodeReadoutProtect:   0x82,
	CommandCodeReadoutUnprotect: 0x92,
}

// STM32 talks to the ROM bootloader of an STM32 part over its UART
type STM32 struct {
	link *uartLink

	cmdCodes          commandCodeMap
	bootloaderVersion byte
	identity          string
}

func newSTM32(link *uartLink) *STM32 {
	return &STM32{
		link:     link,
		cmdCodes: commandCodeMap{},
	}
}

// init syncs with the bootloader and loads its command table
func (s *STM32) init() error {
	if err := s.cmdSync(); err != nil {
		return errors.Wrap(err, "could not sync")
	}
	return errors.Wrap(s.cmdGet(), "could not get command table")
}

// BootloaderVersion returns the version byte reported by Get
func (s *STM32) BootloaderVersion() byte {
	return s.bootloaderVersion
}

// Identify will report back a unique string with the ID of the chip
func (s *STM32) Identify() (string, error) {
	if s.identity != "" {
		return s.identity, nil
	}
	pid, err := s.cmdGetID()
	if err != nil {
		return "", err
	}
	s.identity = "STM_" + pid
	return s.identity, nil
}

// Erase will mass erase the flash memory
func (s *STM32) Erase() error {
	return s.cmdEraseMemory()
}

// commandSequence will return the byte sequence required for the requested
// command
func (s *STM32) commandSequence(c CommandCode) []byte {
	if c == CommandCodeSync {
		return []byte{b_STM_SYNC}
	}

	b := s.commandByte(c)
	return []byte{b, 0xff ^ b}
}

func (s *STM32) commandByte(c CommandCode) byte {
	b, ok := s.cmdCodes[c]
	if !ok {
		b, ok = defaultCmdCodeMap[c]
		if !ok {
			panic("unknown command code")
		}
	}
	return b
}

// readWithLength will read the next bytes based on a STM formatted message
// which is prefixed by a single byte holding the length minus one
func (s *STM32) readWithLength() ([]byte, error) {
	n, err := s.link.ReadN(1, STMTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "could not get length from stm microcontroller")
	}
	return s.link.ReadN(int(n[0])+1, STMTimeout)
}

// readAckOrNack reads whether the pending byte is ACK, NACK, or neither
func (s *STM32) readAckOrNack(to time.Duration) error {
	bs, err := s.link.ReadN(1, to)
	if err != nil {
		return err
	}

	switch bs[0] {
	case b_STM_ACK:
		return nil
	case b_STM_NACK:
		return ErrSTMNACK
	}
	return ErrSTMFailedToAck
}

// EraseSTM32 will mass erase an STM32 attached to the upload port through
// its UART bootloader, using the GPIO strap to enter and leave the bootloader
// when one is configured
func (b *Board) EraseSTM32(ctx context.Context) error {
	port, err := b.ResolvePort(ctx, false)
	if err != nil {
		return err
	}

	strap, err := b.Strap()
	if err != nil {
		return err
	}
	if strap != nil {
		if err := strap.EnterBootloader(); err != nil {
			strap.Release()
			return errors.Wrap(err, "could not enter bootloader")
		}
		defer strap.Release()
	}

	link, err := openUART(b.open, port, b.config.BootloaderBaud)
	if err != nil {
		return err
	}
	defer link.Close()

	stm := newSTM32(link)
	if err := stm.init(); err != nil {
		return errors.Wrap(err, "could not init stm chip")
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	id, err := stm.Identify()
	if err != nil {
		return errors.Wrap(err, "could not identify chip")
	}
	logrus.Infof("Erasing %s (bootloader v%x)", id, stm.BootloaderVersion())

	return errors.Wrap(stm.Erase(), "could not erase memory")
}
