package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	resetBootloader bool
	resetGPIO       bool
	stm32BootHigh   bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the board through DTR/RTS or the host GPIO strap",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fc, err := boardConfig(true)
		if err != nil {
			return err
		}
		b := newBoard(fc)

		if resetGPIO {
			s, err := b.Strap()
			if err != nil {
				return err
			}
			if s == nil {
				return errors.New("gpio.boot and gpio.reset must be configured")
			}
			if resetBootloader {
				// the lines stay claimed so the board stays in the bootloader
				return s.EnterBootloader()
			}
			return s.Release()
		}

		if _, err := b.ResolvePort(cmd.Context(), false); err != nil {
			return err
		}
		if err := b.ResetSerial(resetBootloader); err != nil {
			return err
		}
		logrus.Infof("Reset %s", b.Config().Port)
		return nil
	},
}

var stm32EraseCmd = &cobra.Command{
	Use:   "stm32-erase",
	Short: "Mass erase an STM32 through its UART bootloader",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fc, err := boardConfig(true)
		if err != nil {
			return err
		}
		if baudFlag > 0 {
			fc.BootloaderBaud = baudFlag
		}
		fc.BootActiveHigh = stm32BootHigh
		return newBoard(fc).EraseSTM32(cmd.Context())
	},
}

func init() {
	addBoardFlags(resetCmd)
	resetCmd.Flags().BoolVar(&resetBootloader, "bootloader", false, "leave the board in its ROM bootloader")
	resetCmd.Flags().BoolVar(&resetGPIO, "gpio", false, "use the host GPIO strap instead of DTR/RTS")
	rootCmd.AddCommand(resetCmd)

	addBoardFlags(stm32EraseCmd)
	stm32EraseCmd.Flags().BoolVar(&stm32BootHigh, "boot-active-high", true, "BOOT0 selects the bootloader when high")
	rootCmd.AddCommand(stm32EraseCmd)
}
