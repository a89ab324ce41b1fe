// Command uploadhook runs the pre-upload steps of a PlatformIO ESP32 project:
// erasing flash, finding the upload port and patching the platform builder.
//
// Hook it into a project from an extra script:
//
//	Import("env")
//	env.AddPreAction("upload", "uploadhook pre-upload --project-dir $PROJECT_DIR")
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.Error(err)
		stop()
		os.Exit(1)
	}
}
