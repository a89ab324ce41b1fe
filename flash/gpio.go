package flash

import (
	"time"

	"github.com/piotrjaromin/gpio"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var strapDelay = 10 * time.Millisecond

// line is a single GPIO output
type line interface {
	High() error
	Low() error
}

type pinLine struct {
	high func() error
	low  func() error
}

func (l pinLine) High() error { return l.high() }
func (l pinLine) Low() error  { return l.low() }

// Strap drives the boot strapping and reset lines of a board wired directly
// to host GPIO, e.g. an ESP32 or STM32 hanging off a single board computer's
// UART
type Strap struct {
	boot  line
	reset line

	// bootActiveHigh is true for STM32 BOOT0 and false for ESP32 IO0
	bootActiveHigh bool

	cleanup []func()
}

// NewStrap claims the boot and reset GPIOs, leaving the board running
func NewStrap(bootPin, resetPin int, bootActiveHigh bool) (*Strap, error) {
	s := &Strap{bootActiveHigh: bootActiveHigh}

	boot, err := gpio.NewOutput(uint(bootPin), !bootActiveHigh)
	if err != nil {
		return nil, errors.Wrapf(err, "boot gpio %d", bootPin)
	}
	s.boot = pinLine{high: boot.High, low: boot.Low}
	s.cleanup = append(s.cleanup, func() { boot.Cleanup() })

	reset, err := gpio.NewOutput(uint(resetPin), true)
	if err != nil {
		s.close()
		return nil, errors.Wrapf(err, "reset gpio %d", resetPin)
	}
	s.reset = pinLine{high: reset.High, low: reset.Low}
	s.cleanup = append(s.cleanup, func() { reset.Cleanup() })

	return s, nil
}

func (s *Strap) setBoot(active bool) error {
	if active == s.bootActiveHigh {
		return s.boot.High()
	}
	return s.boot.Low()
}

// pulse holds reset low and releases it with boot in the requested state
func (s *Strap) pulse(bootActive bool) error {
	if err := s.reset.Low(); err != nil {
		return err
	}
	if err := s.setBoot(bootActive); err != nil {
		return err
	}
	time.Sleep(strapDelay)
	if err := s.reset.High(); err != nil {
		return err
	}
	time.Sleep(strapDelay)
	return nil
}

// EnterBootloader will reset the board into its ROM bootloader
func (s *Strap) EnterBootloader() error {
	logrus.Debug("strap: enter bootloader")
	return s.pulse(true)
}

// Release will reset the board back into its application and give the GPIO
// lines back to the system
func (s *Strap) Release() error {
	logrus.Debug("strap: release")
	err := s.pulse(false)
	s.close()
	return err
}

func (s *Strap) close() {
	for _, fn := range s.cleanup {
		fn()
	}
	s.cleanup = nil
}
