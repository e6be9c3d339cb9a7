package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "foldermate",
	Short: "File organization registry with semantic search",
	Long: `Foldermate tracks the files of a folder in an embedded registry,
indexes their analysis reports and organization notes in a local
vector store, and relocates files into a planned target layout.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "organizer.config.json", "config file path")
}
