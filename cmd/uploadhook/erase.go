package main

import (
	"github.com/spf13/cobra"

	"github.com/synthread/uploadhook/flash"
)

var eraseWait bool

var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Erase the whole flash before uploading",
	Long: `Erase the whole flash of the board on the upload port with esptool.

The port comes from --port, UPLOAD_PORT or upload_port in platformio.ini and is
detected when none of them is set. The erase runs at 921600 baud unless --baud,
UPLOAD_SPEED or the config file says otherwise; upload_speed is not used.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := eraseBoard()
		if err != nil {
			return err
		}
		return b.EraseFlash(cmd.Context(), eraseWait)
	},
}

func eraseBoard() (*flash.Board, error) {
	fc, err := boardConfig(false)
	if err != nil {
		return nil, err
	}
	return newBoard(fc), nil
}

func init() {
	addBoardFlags(eraseCmd)
	eraseCmd.Flags().BoolVarP(&eraseWait, "wait", "w", false, "wait for the board when no port is found")
	rootCmd.AddCommand(eraseCmd)
}
