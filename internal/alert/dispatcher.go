package alert

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/ppiankov/stewardgate/internal/audit"
)

// Dispatcher fans out alert events to matching webhook configurations.
type Dispatcher struct {
	configs []AlertConfig
	sender  *Sender
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty (callers should nil-check).
func NewDispatcher(configs []AlertConfig, logger *slog.Logger) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{configs: configs, sender: defaultSender, logger: logger}
}

// Dispatch sends the event to all webhooks whose Events list matches.
// Matching is based on event.Result or event.Action.
// Fires goroutines; does not block the caller.
func (d *Dispatcher) Dispatch(event AlertEvent) {
	for _, cfg := range d.configs {
		if matches(cfg.Events, event) {
			go func(cfg AlertConfig) {
				if err := d.sender.Send(context.Background(), cfg, event); err != nil {
					d.logger.Warn("alert webhook failed", "url", cfg.URL, "action", event.Action, "error", err)
				}
			}(cfg)
		}
	}
}

// Observe dispatches an audit entry. Safe to call on a nil Dispatcher.
func (d *Dispatcher) Observe(e audit.Entry) {
	if d == nil {
		return
	}
	d.Dispatch(EventFromEntry(e))
}

func matches(events []string, event AlertEvent) bool {
	for _, e := range events {
		if event.Result != "" && e == event.Result {
			return true
		}
		if e == event.Action {
			return true
		}
	}
	return false
}

// Router holds the active Dispatcher so a policy reload can replace the
// webhook set without re-registering the gate observer.
type Router struct {
	current atomic.Pointer[Dispatcher]
}

// Swap installs d as the active dispatcher. Nil disables alerting.
func (r *Router) Swap(d *Dispatcher) {
	r.current.Store(d)
}

// Observe forwards the entry to the active dispatcher.
func (r *Router) Observe(e audit.Entry) {
	r.current.Load().Observe(e)
}
