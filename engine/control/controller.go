package control

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Controller runs the settings watchers and, when an apply function is set, delivers the
// newest settings to it.
type Controller struct {
	logger   *zap.Logger
	mailbox  *Mailbox
	watchers []*Watcher
	apply    func(Settings) error
}

// ControllerOption is a functional option for configuring a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the logger of the controller.
func WithLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithWatcher adds a watcher run by the controller.
func WithWatcher(w *Watcher) ControllerOption {
	return func(c *Controller) {
		c.watchers = append(c.watchers, w)
	}
}

// WithApply sets the function the controller delivers settings to on its own goroutine. Leave
// it unset when the render thread drains the mailbox itself.
func WithApply(apply func(Settings) error) ControllerOption {
	return func(c *Controller) {
		c.apply = apply
	}
}

// NewController creates a Controller reading from mailbox.
func NewController(mailbox *Mailbox, options ...ControllerOption) *Controller {
	c := &Controller{
		logger:  zap.NewNop(),
		mailbox: mailbox,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Mailbox returns the mailbox the controller reads.
func (c *Controller) Mailbox() *Mailbox {
	return c.mailbox
}

// Run runs every watcher and the apply loop until ctx is done or one of them fails.
// A rejected apply is logged and does not stop the controller.
//
// Parameters:
//   - ctx: stops the controller
//
// Returns:
//   - error: the first watcher error, nil when ctx ends the run
func (c *Controller) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range c.watchers {
		g.Go(func() error {
			return w.Run(ctx)
		})
	}
	if c.apply != nil {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-c.mailbox.Notify():
					if s, ok := c.mailbox.Drain(); ok {
						if err := c.apply(s); err != nil {
							c.logger.Error("settings rejected", zap.Error(err))
						}
					}
				}
			}
		})
	}
	return g.Wait()
}
