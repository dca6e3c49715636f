package lifecycle

import (
	"errors"
	"log/slog"
)

// Host is implemented by views whose visibility is driven by a host framework. The framework
// calls OnForeground when the view becomes visible and OnBackground when it leaves the
// foreground.
type Host interface {
	OnForeground()
	OnBackground()
}

// Controller is a Host that activates a Manager with a fresh set of bindings on every
// OnForeground and deactivates it on OnBackground.
type Controller struct {
	manager  *Manager
	bindings func() []Binding
	logger   *slog.Logger
}

var _ Host = (*Controller)(nil)

// NewController creates a Controller. bindings is called on every OnForeground.
func NewController(m *Manager, bindings func() []Binding, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{manager: m, bindings: bindings, logger: logger}
}

func (c *Controller) OnForeground() {
	err := c.manager.Activate(c.bindings()...)
	switch {
	case errors.Is(err, ErrAlreadyActive):
		c.logger.Debug("Ignoring foreground transition, already active")
	case err != nil:
		c.logger.Error("Failed to activate subscriptions", "error", err)
	}
}

func (c *Controller) OnBackground() {
	if err := c.manager.Deactivate(); err != nil {
		c.logger.Error("Failed to deactivate subscriptions", "error", err)
	}
}
