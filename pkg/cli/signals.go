package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// exit is replaced in tests.
var exit = os.Exit

// SetupSignalHandler returns a context that is canceled on the first
// SIGINT or SIGTERM. A second signal exits the process immediately with
// ExitError. Call stop to release the signal handler.
func SetupSignalHandler(parent context.Context) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-done:
			return
		}
		select {
		case <-sigChan:
			exit(ExitError)
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		close(done)
		cancel()
	}
}

// ReloadSignals returns a channel that receives SIGHUP. Call stop to
// release it.
func ReloadSignals() (<-chan os.Signal, func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	return sigChan, func() { signal.Stop(sigChan) }
}
