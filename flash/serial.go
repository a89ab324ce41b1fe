package flash

import (
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

var ErrTimeout = errors.New("timed out reading from microcontroller")
var ErrClosed = errors.New("serial port is closed")

// resetDelay is how long EN is held low. esptool uses the same figure.
var resetDelay = 100 * time.Millisecond
var bootDelay = 50 * time.Millisecond

// lineControl is the part of a serial port needed to drive the auto-reset
// circuit found on ESP32 dev boards
type lineControl interface {
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	Close() error
}

// Probe will open and close the upload port to prove that nothing else is
// holding it
func (b *Board) Probe() error {
	p, err := b.open(b.config.Port, &serial.Mode{BaudRate: b.config.Baud})
	if err != nil {
		return errors.Wrapf(err, "could not open %s", b.config.Port)
	}
	logrus.Debugf("probe %s ok", b.config.Port)
	return p.Close()
}

// ResetSerial will reset the board through the DTR/RTS lines of the upload
// port, optionally leaving it in the ROM bootloader
func (b *Board) ResetSerial(bootloader bool) error {
	p, err := b.open(b.config.Port, &serial.Mode{BaudRate: b.config.Baud})
	if err != nil {
		return errors.Wrapf(err, "could not open %s", b.config.Port)
	}
	defer p.Close()

	if bootloader {
		return errors.Wrap(bootloaderReset(p), "bootloader reset")
	}
	return errors.Wrap(hardReset(p), "hard reset")
}

// hardReset pulses EN through RTS
func hardReset(p lineControl) error {
	if err := p.SetRTS(true); err != nil {
		return err
	}
	time.Sleep(resetDelay)
	return p.SetRTS(false)
}

// bootloaderReset holds IO0 low through DTR while EN is released
func bootloaderReset(p lineControl) error {
	steps := []struct {
		dtr, rts bool
		wait     time.Duration
	}{
		{false, true, resetDelay},
		{true, false, bootDelay},
		{false, false, 0},
	}

	for _, s := range steps {
		if err := p.SetDTR(s.dtr); err != nil {
			return err
		}
		if err := p.SetRTS(s.rts); err != nil {
			return err
		}
		time.Sleep(s.wait)
	}
	return nil
}

// uartPort is the part of a serial port the STM32 bootloader link uses
type uartPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

// uartLink buffers bytes read from a UART so they can be consumed with a
// timeout
type uartLink struct {
	port uartPort
	rx   chan byte
	done chan struct{}
}

func openUART(open func(string, *serial.Mode) (serial.Port, error), name string, baud int) (*uartLink, error) {
	p, err := open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not open serial")
	}
	return newUARTLink(p), nil
}

func newUARTLink(p uartPort) *uartLink {
	l := &uartLink{
		port: p,
		rx:   make(chan byte, 64),
		done: make(chan struct{}),
	}
	go l.read()
	return l
}

// read is the loop that will read from the port and write the incoming bytes
// to the rx chan until the port is closed
func (l *uartLink) read() {
	defer close(l.done)

	buf := make([]byte, 64)
	l.port.SetReadTimeout(10 * time.Millisecond)

	for {
		n, err := l.port.Read(buf)
		if err != nil {
			// don't log if we're just complaining about it being closed
			if perr, ok := err.(*serial.PortError); ok && perr.Code() == serial.PortClosed {
				return
			}
			if errors.Is(err, syscall.EBADF) || errors.Is(err, ErrClosed) {
				return
			}
			logrus.Error("rx err: ", err.Error())
			return
		}

		if n > 0 {
			logrus.Debugf("mcu rx: %x", buf[:n])
		}
		for _, b := range buf[:n] {
			l.rx <- b
		}
	}
}

// Write will write the specified bytes to the microcontroller
func (l *uartLink) Write(bs ...[]byte) error {
	for _, b := range bs {
		if _, err := l.port.Write(b); err != nil {
			return err
		}
		logrus.Debugf("mcu tx: %x", b)
	}
	return nil
}

// ReadN will read exactly n bytes from the rx chan
func (l *uartLink) ReadN(n int, to time.Duration) ([]byte, error) {
	bs := make([]byte, n)
	timer := time.NewTimer(to)
	defer timer.Stop()

	for i := 0; i < n; i++ {
		select {
		case b := <-l.rx:
			bs[i] = b
			continue
		default:
		}

		select {
		case <-timer.C:
			return nil, ErrTimeout
		case <-l.done:
			return nil, ErrClosed
		case b := <-l.rx:
			bs[i] = b
		}
	}
	return bs, nil
}

// Close will close the port and wait for the read loop to stop
func (l *uartLink) Close() error {
	err := l.port.Close()
	// unblock a reader stuck on a full rx chan
	for {
		select {
		case <-l.done:
			return err
		case <-l.rx:
		}
	}
}
