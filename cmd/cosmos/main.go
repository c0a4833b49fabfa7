package main

import (
	"os"
)

// Set with -ldflags "-X main.Version=... -X main.Release=..."
var (
	Version = "0.1.0"
	Release = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
