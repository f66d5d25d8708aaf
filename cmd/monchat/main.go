package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "monchat"}

	root.AddCommand(serveCMD(), etlCMD(), migrateCMD(), schemaCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
