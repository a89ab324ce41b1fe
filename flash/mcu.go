package flash

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

var DefaultBaud = 921600
var DefaultBootloaderBaud = 115200
var DefaultChip = "esp32"
var DefaultBefore = "default_reset"
var DefaultAfter = "hard_reset"
var DefaultPython = "python3"
var DefaultDevDir = "/dev"
var DefaultPortWait = 30 * time.Second

// DefaultPortMatch lists the substrings that identify a USB-UART bridge by
// port name. The first entry is the macOS CP210x/FTDI name most ESP32 dev
// boards enumerate as.
var DefaultPortMatch = []string{
	"cu.usbserial",
	"cu.SLAB_USBtoUART",
	"cu.wchusbserial",
	"ttyUSB",
	"ttyACM",
}

// Config defines configuration for erasing and resetting the board attached
// to the upload port
type Config struct {
	Chip   string
	Port   string
	Baud   int
	Before string
	After  string

	// Esptool is an explicit path to the esptool executable. When empty the
	// Arduino15 package tree, the PATH and finally `python -m esptool` are
	// tried in that order.
	Esptool        string
	Python         string
	InstallEsptool bool

	PortMatch []string
	VID       string
	PID       string
	DevDir    string
	PortWait  time.Duration

	// BootGPIO and ResetGPIO are host GPIO numbers wired to the board's
	// strapping and reset lines. Zero disables GPIO strapping.
	BootGPIO       int
	ResetGPIO      int
	BootActiveHigh bool

	BootloaderBaud int
}

// Board represents the microcontroller attached to the upload port
type Board struct {
	config *Config

	esptool  *Esptool
	detector *Detector

	open func(name string, mode *serial.Mode) (serial.Port, error)
}

// NewBoard will create a new reference to the board described by c, filling
// in defaults for anything left unset
func NewBoard(c *Config) *Board {
	if c == nil {
		c = &Config{}
	}

	if c.Chip == "" {
		c.Chip = DefaultChip
	}
	c.Baud = positiveOr(c.Baud, DefaultBaud)
	c.BootloaderBaud = positiveOr(c.BootloaderBaud, DefaultBootloaderBaud)
	c.PortWait = positiveOr(c.PortWait, DefaultPortWait)
	if c.Before == "" {
		c.Before = DefaultBefore
	}
	if c.After == "" {
		c.After = DefaultAfter
	}
	if c.Python == "" {
		c.Python = DefaultPython
	}
	if len(c.PortMatch) == 0 {
		c.PortMatch = append([]string(nil), DefaultPortMatch...)
	}
	if c.DevDir == "" {
		c.DevDir = DefaultDevDir
	}

	return &Board{
		config:   c,
		esptool:  NewEsptool(c.Esptool, c.Python),
		detector: NewDetector(c.PortMatch, c.VID, c.PID, c.DevDir),
		open:     serial.Open,
	}
}

// Config returns the effective configuration after defaults were applied
func (b *Board) Config() Config {
	return *b.config
}

// Detector returns the serial port detector used when no port is configured
func (b *Board) Detector() *Detector {
	return b.detector
}

// ResolvePort returns the configured upload port, falling back to detecting
// one when none is configured
func (b *Board) ResolvePort(ctx context.Context, wait bool) (string, error) {
	if b.config.Port != "" {
		return b.config.Port, nil
	}

	var port string
	var err error
	if wait {
		port, err = b.detector.Wait(ctx, b.config.PortWait)
	} else {
		port, err = b.detector.Detect()
	}
	if err != nil {
		return "", err
	}

	logrus.Infof("Found upload port: %s", port)
	b.config.Port = port
	return port, nil
}

// Strap will claim the GPIO lines wired to the board. It returns nil when no
// GPIO lines are configured.
func (b *Board) Strap() (*Strap, error) {
	if b.config.BootGPIO <= 0 || b.config.ResetGPIO <= 0 {
		return nil, nil
	}
	s, err := NewStrap(b.config.BootGPIO, b.config.ResetGPIO, b.config.BootActiveHigh)
	if err != nil {
		return nil, errors.Wrap(err, "could not setup pins")
	}
	return s, nil
}
