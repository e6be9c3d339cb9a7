package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foldermate/foldermate/internal/progress"
	"github.com/foldermate/foldermate/internal/walker"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover files under the base directory",
	Long:  `Walks the base directory and registers every file with an allowed extension. Already-known files are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, database, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		result, err := walker.Scan(ctx, store, progress.NewReporter("scanning"))
		if err != nil {
			return err
		}
		fmt.Printf("scan complete: %d new, %d known, %d skipped\n",
			result.Inserted, result.Existing, result.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
