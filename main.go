package main

import (
	"os"

	"github.com/foldermate/foldermate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
