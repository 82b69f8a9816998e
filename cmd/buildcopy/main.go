package main

import (
	"fmt"
	"os"

	"buildcopy/internal/log"
)

var (
	version = "dev"
)

// Entry point for the application
func main() {
	err := NewRootCmd().Execute()
	_ = log.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorText(err.Error()))
		os.Exit(1)
	}
}
