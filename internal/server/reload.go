package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce is how long the watcher waits after the last write.
const reloadDebounce = 500 * time.Millisecond

// Reloader watches the policy file and hot-reloads the gate thresholds
// and webhook alerts.
type Reloader struct {
	watcher *fsnotify.Watcher
	reload  func() error
	paths   []string
	logger  *slog.Logger
}

// NewReloader creates a file watcher that calls server.ReloadPolicy.
// Paths that are empty or do not exist are skipped.
func NewReloader(server *Server, paths []string) (*Reloader, error) {
	return newReloader(server.ReloadPolicy, paths, server.logger)
}

func newReloader(reload func() error, paths []string, logger *slog.Logger) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	var watched []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := watcher.Add(p); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %q: %w", p, err)
		}
		watched = append(watched, p)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Reloader{
		watcher: watcher,
		reload:  reload,
		paths:   watched,
		logger:  logger,
	}, nil
}

// Paths returns the files actually being watched.
func (r *Reloader) Paths() []string {
	return r.paths
}

// Run watches for file changes and reloads policy. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(reloadDebounce, func() {
					if err := r.reload(); err != nil {
						r.logger.Error("hot-reload failed", "error", err)
					} else {
						r.logger.Info("hot-reload: policy reloaded", "path", event.Name)
					}
				})
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("file watcher error", "error", err)
		}
	}
}
