package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synthread/uploadhook/patch"
)

var (
	patchDryRun    bool
	patchNoBackup  bool
	patchCoreDir   string
	patchPlatforms []string
)

var patchCmd = &cobra.Command{
	Use:   "patch-builder",
	Short: "Make the espressif32 builder run esptool as a python module",
	Long: `Rewrite the esptool upload branch of the espressif32 platform's
builder/main.py so uploads install esptool with pip when needed and run it with
"$PYTHONEXE -m esptool". Running it again on a patched builder does nothing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		coreDir := patchCoreDir
		if coreDir == "" {
			var err error
			if coreDir, err = patch.CoreDir(); err != nil {
				return err
			}
		}

		platforms := patchPlatforms
		if len(platforms) == 0 {
			platforms = settings.Builder.Platforms
		}

		path, err := patch.Locate(coreDir, platforms)
		if err != nil {
			return err
		}

		res, err := patch.File(path, patch.Options{
			Backup: settings.Builder.Backup && !patchNoBackup,
			DryRun: patchDryRun,
		})
		if err != nil {
			return err
		}

		if patchDryRun && res.Changed {
			fmt.Fprint(cmd.OutOrStdout(), res.Diff)
		}
		return nil
	},
}

func init() {
	patchCmd.Flags().BoolVarP(&patchDryRun, "dry-run", "n", false, "print the diff without writing")
	patchCmd.Flags().BoolVar(&patchNoBackup, "no-backup", false, "do not keep main.py.orig")
	patchCmd.Flags().StringVar(&patchCoreDir, "core-dir", "", "PlatformIO core directory (default: $PLATFORMIO_CORE_DIR or ~/.platformio)")
	patchCmd.Flags().StringSliceVar(&patchPlatforms, "platform", nil, "platform directories to try in order (default: espressif32@3.5.0,espressif32)")
	rootCmd.AddCommand(patchCmd)
}
