package main

import (
	"github.com/jamesainslie/sift/pkg/sift/config"
	"github.com/jamesainslie/sift/pkg/sift/logging"
)

// initLogging starts file logging from the configuration. --verbose mirrors
// debug records to stderr and --quiet silences the console entirely.
// interactive keeps the console clear while the live feed owns the terminal.
func initLogging(c *config.Config, interactive bool) error {
	opts, err := c.LoggingOptions()
	if err != nil {
		return err
	}

	switch {
	case quiet:
		opts.ConsoleLevel = ""
	case verbose:
		opts.ConsoleLevel = "debug"
	}
	opts.Interactive = interactive

	return logging.Init(opts)
}

func shutdownLogging() {
	_ = logging.Close()
}
