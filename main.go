package main

import (
	"fmt"
	"os"

	"nearmiss-dashboard/cmd"
	"nearmiss-dashboard/core/appbootstrap"
)

func main() {
	rootCmd := cmd.RootCommand(&appbootstrap.Context{})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
