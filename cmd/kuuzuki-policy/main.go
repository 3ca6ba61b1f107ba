// Package main provides the entry point for the kuuzuki-policy CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/kuuzuki-ai/kuuzuki/cmd/kuuzuki-policy/commands"
)

func main() {
	// A .env in the working directory may carry KUUZUKI_PERMISSION and
	// friends; missing files are fine.
	_ = godotenv.Load()

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
