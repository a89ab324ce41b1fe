package main

import (
	"github.com/spf13/cobra"

	"github.com/synthread/uploadhook/flash"
)

var preUploadWait bool

var preUploadCmd = &cobra.Command{
	Use:   "pre-upload",
	Short: "Detect the upload port, make sure esptool is installed and erase the flash",
	Long: `Detect the upload port by name, ignoring any configured port, install esptool
into the python interpreter when it is missing and erase the flash with the
chip type detected by esptool at the project's upload_speed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := preUploadBoard()
		if err != nil {
			return err
		}
		return b.EraseFlash(cmd.Context(), preUploadWait)
	},
}

func preUploadBoard() (*flash.Board, error) {
	fc, err := boardConfig(true)
	if err != nil {
		return nil, err
	}
	// only an explicit --port skips detection
	fc.Port = portFlag
	if chipFlag == "" {
		fc.Chip = "auto"
	}
	fc.InstallEsptool = true

	return newBoard(fc), nil
}

func init() {
	addBoardFlags(preUploadCmd)
	preUploadCmd.Flags().BoolVarP(&preUploadWait, "wait", "w", false, "wait for the board to be connected")
	rootCmd.AddCommand(preUploadCmd)
}
