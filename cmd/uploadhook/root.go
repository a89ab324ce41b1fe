package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/synthread/uploadhook/config"
	"github.com/synthread/uploadhook/flash"
)

// Global flags
var (
	projectDir string
	envName    string
	configPath string
	verbose    bool
)

// Flags shared by the commands that talk to the board
var (
	portFlag string
	baudFlag int
	chipFlag string
)

// settings is loaded once per invocation before any command runs
var settings *config.Config

// portLister replaces the host port enumeration when set
var portLister flash.PortLister

var rootCmd = &cobra.Command{
	Use:           "uploadhook",
	Short:         "Pre-upload helpers for PlatformIO ESP32 projects",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logrus.SetOutput(cmd.ErrOrStderr())
		logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

		if projectDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return errors.Wrap(err, "could not get working directory")
			}
			projectDir = wd
		}

		cfg, err := config.Load(projectDir, configPath)
		if err != nil {
			return err
		}
		if envName != "" {
			cfg.Env = envName
		}

		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return errors.Wrap(err, "invalid log level")
		}
		if verbose {
			level = logrus.DebugLevel
		}
		logrus.SetLevel(level)

		settings = cfg
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&projectDir, "project-dir", "d", "", "PlatformIO project directory (default: working directory)")
	pf.StringVarP(&envName, "env", "e", "", "platformio.ini environment (default: default_envs or the first env)")
	pf.StringVarP(&configPath, "config", "c", "", "config file (default: <project-dir>/"+config.FileName+")")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log serial traffic and commands")
}

// addBoardFlags registers the flags that override the upload settings
func addBoardFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&portFlag, "port", "p", "", "upload port (default: upload_port or detected)")
	cmd.Flags().IntVarP(&baudFlag, "baud", "b", 0, "baud rate (default: upload_speed or 921600)")
	cmd.Flags().StringVar(&chipFlag, "chip", "", "esptool chip type (default: esp32)")
}

// boardConfig merges the loaded settings, the PlatformIO environment and the
// command line flags. upload_speed from platformio.ini is only used when
// useUploadSpeed is set.
func boardConfig(useUploadSpeed bool) (*flash.Config, error) {
	env, err := settings.LoadProject(projectDir)
	if err != nil {
		return nil, err
	}
	if env != nil {
		logrus.Debugf("using platformio env %s", env.Name)
		if !useUploadSpeed {
			e := *env
			e.UploadSpeed = 0
			env = &e
		}
	}

	fc := settings.Resolve(env)
	if portFlag != "" {
		fc.Port = portFlag
	}
	if baudFlag > 0 {
		fc.Baud = baudFlag
	}
	if chipFlag != "" {
		fc.Chip = chipFlag
	}
	return fc, nil
}

func newBoard(fc *flash.Config) *flash.Board {
	b := flash.NewBoard(fc)
	if portLister != nil {
		b.Detector().Lister = portLister
	}
	return b
}
