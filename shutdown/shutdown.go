// Package shutdown ties process termination signals to a context.
package shutdown

import (
	"context"
	"os"
	"os/signal"
)

func Notify(ch chan os.Signal) {
	signal.Notify(ch, signals...)
}

// Context is cancelled on the first termination signal. A second signal
// exits immediately with status 130.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 2)
	Notify(ch)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
			signal.Stop(ch)
			return
		}
		<-ch
		os.Exit(130)
	}()
	return ctx, func() {
		signal.Stop(ch)
		cancel()
	}
}
