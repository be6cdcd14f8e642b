package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

// DefaultDebounce groups bursts of file events, such as a database update
// replacing several files, into one reload check.
const DefaultDebounce = 2 * time.Second

func (m *Manager) reloadFrom(ctx context.Context, source string) Outcome {
	o := m.MaybeReload(ctx)
	switch o.Kind {
	case Reloaded:
		m.log.Info("background reload", "source", source, "signatures", o.Signatures)
	case ReloadFailed:
		m.log.Warn("background reload failed", "source", source, "reason", o.Reason)
	}
	if m.opts.OnBackgroundReload != nil {
		m.opts.OnBackgroundReload(source, o)
	}
	return o
}

// Watch checks for a reload whenever files in the signature directory
// change. It blocks until ctx is cancelled.
func (m *Manager) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(m.opts.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", m.opts.Dir, err)
	}
	m.log.Info("watching signature dir", "dir", m.opts.Dir, "debounce", debounce.String())

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			m.reloadFrom(ctx, "watch")
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.log.Warn("watcher error", "error", err)
		}
	}
}

// Schedule checks for a reload on a cron schedule (standard five-field
// syntax or descriptors such as "@every 10m"). The returned function stops
// the schedule and waits for a running check to finish.
func (m *Manager) Schedule(ctx context.Context, spec string) (stop func(), err error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { m.reloadFrom(ctx, "schedule") }); err != nil {
		return nil, fmt.Errorf("reload schedule %q: %w", spec, err)
	}
	c.Start()
	m.log.Info("scheduled reload checks", "schedule", spec)
	return func() { <-c.Stop().Done() }, nil
}
