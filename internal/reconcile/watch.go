package reconcile

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/flo-mic/stackgen/internal/delta"
	"github.com/flo-mic/stackgen/internal/descriptor"
)

// DefaultDebounce batches the bursts of events an editor produces on save.
const DefaultDebounce = 300 * time.Millisecond

// Watch calls pass whenever the content of the descriptor in e.Root changes,
// until ctx is done. Events are debounced and a pass only runs when the file
// hash differs from the one seen after the previous pass, so the descriptor
// written by the pass itself does not trigger another one. Pass errors are
// logged and watching continues.
func (e *Engine) Watch(ctx context.Context, debounce time.Duration, pass func(context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// The descriptor is replaced by rename, so the directory is watched
	// rather than the file.
	if err := watcher.Add(e.Root); err != nil {
		return fmt.Errorf("watching %s: %w", e.Root, err)
	}

	last, _ := delta.HashFile(e.FS, descriptor.FileName)
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != descriptor.FileName {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			e.log().Debug("descriptor event", zap.String("op", event.Op.String()))
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.log().Warn("watcher error", zap.Error(err))

		case <-timer.C:
			h, err := delta.HashFile(e.FS, descriptor.FileName)
			if err != nil || h == last {
				continue
			}
			if err := pass(ctx); err != nil {
				e.log().Error("pass failed", zap.Error(err))
				fmt.Fprintf(e.out(), "[stackgen] Pass failed: %v\n", err)
			}
			last, _ = delta.HashFile(e.FS, descriptor.FileName)
		}
	}
}
