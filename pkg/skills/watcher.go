package skills

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/skillet-dev/skillet/pkg/logger"
)

// rediscoverDelay coalesces bursts of filesystem events (editors write
// several times per save) into a single discovery pass.
const rediscoverDelay = 500 * time.Millisecond

// Watch re-runs discovery whenever a configured skill directory changes.
// It blocks until the context is cancelled. Non-existent roots are skipped,
// matching Discover's best-effort behavior.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create filesystem watcher")
	}
	defer watcher.Close()

	log := logger.G(ctx)

	for _, root := range m.skillDirs {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := watcher.Add(root); err != nil {
			log.WithField("dir", root).WithError(err).Warn("Failed to watch skill directory")
			continue
		}

		// fsnotify is not recursive; watch the immediate skill
		// subdirectories so SKILL.md edits are seen too.
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				_ = watcher.Add(filepath.Join(root, entry.Name()))
			}
		}
	}

	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}

			if timer == nil {
				timer = time.NewTimer(rediscoverDelay)
			} else {
				timer.Reset(rediscoverDelay)
			}
			pending = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Skill directory watch error")

		case <-pending:
			pending = nil
			log.Debug("Skill directories changed, rediscovering")
			m.Discover(ctx)
		}
	}
}
