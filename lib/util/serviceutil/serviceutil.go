package serviceutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext returns a context that is cancelled when Ctrl+C is pressed (or SIGTERM arrives).
// Interrupted reports whether that is what ended it.
func SignalContext(parent context.Context) (ctx context.Context, interrupted func() bool, stop func()) {
	ctx, cancel := context.WithCancel(parent)

	sigs := make(chan os.Signal, 1)
	caught := make(chan struct{})
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigs:
			close(caught)
			cancel()
		case <-ctx.Done():
		}
	}()

	interrupted = func() bool {
		select {
		case <-caught:
			return true
		default:
			return false
		}
	}
	stop = func() {
		signal.Stop(sigs)
		cancel()
	}
	return ctx, interrupted, stop
}

// Fatal logs err and exits with status 1.
func Fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}
