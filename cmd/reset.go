package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetBaseDir string

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe the registry and start over",
	Long: `Deletes every tracked file record, every stored config value and
both vector indices, then re-seeds the base directory. The config
file on disk is not modified.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, database, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		base := resetBaseDir
		if base == "" {
			base = store.Config().BaseDir
		}
		if err := store.Reset(ctx, base); err != nil {
			return err
		}
		fmt.Printf("store reset, base directory %s\n", store.Config().BaseDir)
		return nil
	},
}

func init() {
	resetCmd.Flags().StringVar(&resetBaseDir, "base-dir", "", "base directory to seed after the reset (defaults to the current one)")
	rootCmd.AddCommand(resetCmd)
}
