package main

import (
	"os"
	"os/signal"

	"github.com/jamesainslie/sift/pkg/sift/scanner"
)

// controlScanner maps process signals onto scan control until the scan
// finishes or release is called. Interrupt and terminate stop the scan;
// where supported, SIGUSR1 pauses and SIGUSR2 resumes it.
func controlScanner(s *scanner.Scanner) (release func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, scanSignals...)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case sig := <-sigCh:
				switch {
				case pauseSignal != nil && sig == pauseSignal:
					s.Pause()
					printInfo("Scan paused (send %v to resume)", resumeSignal)
				case resumeSignal != nil && sig == resumeSignal:
					s.Resume()
					printInfo("Scan resumed")
				default:
					printInfo("\nStopping scan...")
					s.Stop()
				}
			case <-s.Done():
				return
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
