package flash

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"
)

// EraseArgs returns the esptool arguments that erase the whole flash of the
// board on port
func (b *Board) EraseArgs(port string) []string {
	return []string{
		"--chip", b.config.Chip,
		"--port", port,
		"--baud", strconv.Itoa(b.config.Baud),
		"--before", b.config.Before,
		"--after", b.config.After,
		"erase_flash",
	}
}

// EraseFlash will erase the whole flash memory so the next upload starts
// from a clean chip. When no port is configured one is detected first.
func (b *Board) EraseFlash(ctx context.Context, waitForPort bool) error {
	logrus.Info("Erasing the flash before uploading")

	port, err := b.ResolvePort(ctx, waitForPort)
	if err != nil {
		return err
	}

	if b.config.InstallEsptool {
		if err := b.esptool.EnsureInstalled(ctx); err != nil {
			return err
		}
	}

	name, _, err := b.esptool.Locate()
	if err != nil {
		return err
	}

	logrus.Infof("Using port: %s", port)
	logrus.Infof("Using esptool: %s", name)

	if err := b.esptool.Run(ctx, b.EraseArgs(port)...); err != nil {
		return err
	}

	logrus.Info("Flash erased, the upload can proceed")
	return nil
}
