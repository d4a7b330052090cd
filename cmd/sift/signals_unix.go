//go:build unix

package main

import (
	"os"
	"syscall"
)

var (
	stopSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	scanSignals = append(stopSignals[:len(stopSignals):len(stopSignals)], syscall.SIGUSR1, syscall.SIGUSR2)

	pauseSignal  os.Signal = syscall.SIGUSR1
	resumeSignal os.Signal = syscall.SIGUSR2
)
