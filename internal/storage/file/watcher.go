package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/benchdash/internal/interfaces"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher publishes EventLookupFileChanged when the lookup file is edited
// outside the service. Writes made through LookupFile.Save are not reported.
type Watcher struct {
	file     *LookupFile
	events   interfaces.EventService
	logger   arbor.ILogger
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending time.Time
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for the given lookup file
func NewWatcher(file *LookupFile, events interfaces.EventService, logger arbor.ILogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		file:     file,
		events:   events,
		logger:   logger,
		watcher:  fsw,
		debounce: defaultDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start watches the lookup file's directory. The directory is watched rather
// than the file because Save replaces the file by rename.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	dir := filepath.Dir(w.file.Path())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create lookup directory: %w", err)
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.logger.Info().Str("path", w.file.Path()).Msg("Watching attribute lookup file for changes")

	go w.run(ctx)
	w.running = true
	return nil
}

// Stop stops the watcher and waits for the event loop to exit
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Lookup file watcher error")
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.file.Path() {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	w.pending = time.Now()
	w.mu.Unlock()
}

// flush publishes once the file has been quiet for the debounce window
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if w.pending.IsZero() || time.Since(w.pending) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.pending = time.Time{}
	w.mu.Unlock()

	data, err := os.ReadFile(w.file.Path())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn().Err(err).Str("path", w.file.Path()).Msg("Failed to read changed lookup file")
		}
		return
	}
	if w.file.wroteLast(data) {
		return
	}

	w.logger.Info().Str("path", w.file.Path()).Int("bytes", len(data)).Msg("Attribute lookup file changed on disk")

	if w.events == nil {
		return
	}
	err = w.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventLookupFileChanged,
		Payload: map[string]interface{}{
			"path":  w.file.Path(),
			"bytes": len(data),
		},
	})
	if err != nil {
		w.logger.Warn().Err(err).Msg("Failed to publish lookup file change")
	}
}
