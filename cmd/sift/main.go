// Package main provides the entry point for the sift CLI.
package main

import (
	"os"
)

func main() {
	err := Execute()
	shutdownLogging()
	if err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
