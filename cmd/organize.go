package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foldermate/foldermate/internal/progress"
	"github.com/foldermate/foldermate/internal/relocation"
)

var organizeCmd = &cobra.Command{
	Use:   "organize",
	Short: "Move planned files into the target directory",
	Long: `Relocates every file that has a planned destination and no final
destination yet. Each file ends in a terminal state: a recorded
destination path, or an error marker when the move was rejected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, database, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		engine := relocation.New(store, progress.NewReporter("organizing"))
		outcomes, err := engine.Run(ctx)
		if err != nil {
			return err
		}

		var moved, copied, failed int
		for _, o := range outcomes {
			switch o.Status {
			case relocation.StatusMoved:
				moved++
			case relocation.StatusCopied:
				copied++
			default:
				failed++
				fmt.Printf("failed %s: %s\n", o.PathRel, o.Error)
			}
		}
		fmt.Printf("organize complete: %d moved, %d copied, %d failed\n", moved, copied, failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(organizeCmd)
}
