// Package shutdown implements cooperative shutdown: an external signal
// flips a shared context.Context, which both the orchestrator loop and
// the chat transport check at their suspension points. In-flight
// review-comment posts are allowed to complete.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jihwankim/recheckwatch/pkg/logging"
)

// Controller watches for SIGINT/SIGTERM and cancels a context in response.
type Controller struct {
	log    *logging.Logger
	cancel context.CancelFunc
}

// New wraps parent with a cancellable context and returns the Controller
// plus the derived context components should use for suspension-point
// checks.
func New(parent context.Context, log *logging.Logger) (*Controller, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &Controller{log: log, cancel: cancel}, ctx
}

// Watch blocks until the parent context is done or a termination signal
// arrives, then cancels the derived context. Intended to run in its own
// goroutine.
func (c *Controller) Watch(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		return
	case sig := <-sigCh:
		c.log.Info("shutdown signal received", "signal", sig.String())
		c.cancel()
	}
}

// Stop triggers shutdown programmatically by cancelling the derived
// context.
func (c *Controller) Stop() {
	c.cancel()
}
