// Package config loads uploadhook settings from .uploadhook.yaml, the
// environment and the project's platformio.ini.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/synthread/uploadhook/flash"
	"github.com/synthread/uploadhook/pioini"
)

const FileName = ".uploadhook.yaml"

// Config is the on-disk configuration
type Config struct {
	Env string `yaml:"env"`

	Chip   string `yaml:"chip"`
	Port   string `yaml:"port"`
	Baud   int    `yaml:"baud"`
	Before string `yaml:"before"`
	After  string `yaml:"after"`

	Esptool string `yaml:"esptool"`
	Python  string `yaml:"python"`

	Detect DetectConfig `yaml:"detect"`
	GPIO   GPIOConfig   `yaml:"gpio"`
	STM32  STM32Config  `yaml:"stm32"`

	Builder BuilderConfig `yaml:"builder"`

	LogLevel string `yaml:"log_level"`
}

type DetectConfig struct {
	Match []string      `yaml:"match"`
	VID   string        `yaml:"vid"`
	PID   string        `yaml:"pid"`
	Wait  time.Duration `yaml:"wait"`
}

type GPIOConfig struct {
	Boot           int  `yaml:"boot"`
	Reset          int  `yaml:"reset"`
	BootActiveHigh bool `yaml:"boot_active_high"`
}

type STM32Config struct {
	Baud int `yaml:"baud"`
}

type BuilderConfig struct {
	Platforms []string `yaml:"platforms"`
	Backup    bool     `yaml:"backup"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Builder: BuilderConfig{
			Backup: true,
		},
	}
}

// Load loads dir/.uploadhook.yaml, or path when it is not empty, and applies
// environment overrides. A missing dir/.uploadhook.yaml yields the defaults; a
// missing explicit path is an error.
func Load(dir, path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(dir, FileName)
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err) && !explicit:
		logrus.Debugf("no config at %s", path)
	case err != nil:
		return nil, errors.Wrap(err, "could not read config")
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "could not parse %s", path)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets the values PlatformIO exports to upload commands
// take precedence over the file
func (c *Config) applyEnvOverrides() error {
	for _, k := range []string{"PLATFORMIO_UPLOAD_PORT", "UPLOAD_PORT"} {
		if v := os.Getenv(k); v != "" {
			c.Port = v
		}
	}
	for _, k := range []string{"PLATFORMIO_UPLOAD_SPEED", "UPLOAD_SPEED"} {
		if v := os.Getenv(k); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.Wrapf(err, "invalid %s", k)
			}
			c.Baud = n
		}
	}
	if v := os.Getenv("UPLOADHOOK_ESPTOOL"); v != "" {
		c.Esptool = v
	}
	if v := os.Getenv("UPLOADHOOK_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("PLATFORMIO_PYTHON_EXE"); v != "" && c.Python == "" {
		c.Python = v
	}
	return nil
}

// Resolve builds the board configuration, filling anything left unset from
// the PlatformIO environment. env may be nil when the directory is not a
// PlatformIO project.
func (c *Config) Resolve(env *pioini.Env) *flash.Config {
	fc := &flash.Config{
		Chip:           c.Chip,
		Port:           c.Port,
		Baud:           c.Baud,
		Before:         c.Before,
		After:          c.After,
		Esptool:        c.Esptool,
		Python:         c.Python,
		PortMatch:      c.Detect.Match,
		VID:            c.Detect.VID,
		PID:            c.Detect.PID,
		PortWait:       c.Detect.Wait,
		BootGPIO:       c.GPIO.Boot,
		ResetGPIO:      c.GPIO.Reset,
		BootActiveHigh: c.GPIO.BootActiveHigh,
		BootloaderBaud: c.STM32.Baud,
	}

	if env != nil {
		if fc.Port == "" {
			fc.Port = env.UploadPort
		}
		if fc.Baud <= 0 {
			fc.Baud = env.UploadSpeed
		}
	}

	return fc
}

// LoadProject returns the PlatformIO environment named by c.Env, or nil when
// dir holds no platformio.ini
func (c *Config) LoadProject(dir string) (*pioini.Env, error) {
	if _, err := os.Stat(filepath.Join(dir, pioini.FileName)); os.IsNotExist(err) {
		logrus.Debugf("%s is not a platformio project", dir)
		return nil, nil
	}

	p, err := pioini.Load(dir)
	if err != nil {
		return nil, err
	}
	return p.Env(c.Env)
}
