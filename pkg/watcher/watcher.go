// Package watcher reports changes of a model file on disk.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/logging"
)

// batchWindow collects the burst of events a single save produces
const batchWindow = 100 * time.Millisecond

// ChangeType represents the type of file change detected
type ChangeType int

const (
	ChangeTypeModified ChangeType = iota // Written or created
	ChangeTypeRemoved                    // Removed or renamed away
)

func (t ChangeType) String() string {
	if t == ChangeTypeRemoved {
		return "removed"
	}
	return "modified"
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// FileWatcher watches one file. The parent directory is watched so that editors replacing the
// file through a rename are noticed.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	events   chan ChangeEvent
	stopOnce sync.Once
}

// NewFileWatcher creates a watcher for the file at path
func NewFileWatcher(path string) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %q", path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	return &FileWatcher{
		watcher: watcher,
		path:    abs,
		events:  make(chan ChangeEvent, 100),
	}, nil
}

// Start begins watching; events stop when ctx is done
func (fw *FileWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(fw.path)
	if err := fw.watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "failed to watch %q", dir)
	}
	logging.Info("started watching model", "path", fw.path)

	go fw.processEvents(ctx)
	return nil
}

// processEvents batches events for the watched file
func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer fw.Stop()

	var (
		pending []string
		last    ChangeType
	)

	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	// One event per batch, typed by the last raw event: a save that removes the file and then
	// recreates it reads as a modification.
	flush := func() {
		if len(pending) > 0 {
			fw.events <- ChangeEvent{Type: last, Paths: pending, Timestamp: time.Now()}
		}
		pending = nil
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			logging.Trace("watcher event", "path", event.Name, "op", event.Op.String())

			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				last = ChangeTypeModified
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				last = ChangeTypeRemoved
			default:
				continue
			}
			pending = append(pending, event.Name)
			flushTimer.Reset(batchWindow)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events, closed when watching stops
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Stop stops the file watcher
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		err = fw.watcher.Close()
	})
	return err
}
