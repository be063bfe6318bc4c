package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/contre95/fpbridge/src/features/scanning"
)

const defaultDebounce = 5 * time.Second

type pendingEvent struct {
	timer     *time.Timer
	eventType scanning.FileEventType
}

// Watcher monitors a directory tree for audio files and emits one event per
// file once it has been quiet for the debounce period.
type Watcher struct {
	watcher    *fsnotify.Watcher
	watchPath  string
	extensions map[string]bool
	debounce   time.Duration

	debounceMutex sync.Mutex
	timers        map[string]*pendingEvent

	stopOnce  sync.Once
	stopChan  chan struct{}
	eventChan chan<- scanning.FileEvent
}

// NewWatcher creates a new file system watcher
func NewWatcher(eventChan chan<- scanning.FileEvent, extensions []string, debounce time.Duration) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = true
	}

	return &Watcher{
		watcher:    watcher,
		extensions: exts,
		debounce:   debounce,
		timers:     make(map[string]*pendingEvent),
		stopChan:   make(chan struct{}),
		eventChan:  eventChan,
	}, nil
}

// Start begins watching watchPath and every directory below it.
func (w *Watcher) Start(ctx context.Context, watchPath string) error {
	w.watchPath = watchPath
	slog.Info("Starting file watcher", "path", watchPath)

	if err := w.addTree(watchPath); err != nil {
		return err
	}

	go w.watchLoop(ctx)

	slog.Info("File watcher started successfully")
	return nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

// Stop stops the file watcher
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		slog.Info("Stopping file watcher")
		close(w.stopChan)

		w.debounceMutex.Lock()
		for path, p := range w.timers {
			p.timer.Stop()
			delete(w.timers, path)
		}
		w.debounceMutex.Unlock()

		w.watcher.Close()
	})
}

// watchLoop processes file system events
func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", "error", err)

		case <-w.stopChan:
			return

		case <-ctx.Done():
			w.Stop()
			return
		}
	}
}

// handleEvent processes a single file system event
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				slog.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !w.isSupportedFile(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.cancelPending(event.Name)
		w.emit(scanning.FileEvent{Path: event.Name, EventType: scanning.FileRemoved, Timestamp: time.Now()})
	case event.Has(fsnotify.Create):
		w.schedule(event.Name, scanning.FileCreated)
	case event.Has(fsnotify.Write):
		w.schedule(event.Name, scanning.FileModified)
	}
}

// schedule starts or resets the debounce timer of path. A file created and
// then written keeps its created type.
func (w *Watcher) schedule(path string, eventType scanning.FileEventType) {
	w.debounceMutex.Lock()
	defer w.debounceMutex.Unlock()

	if p, ok := w.timers[path]; ok {
		p.timer.Stop()
		if p.eventType == scanning.FileCreated {
			eventType = scanning.FileCreated
		}
	}

	slog.Debug("Detected supported file", "file", path, "event", eventType)
	p := &pendingEvent{eventType: eventType}
	p.timer = time.AfterFunc(w.debounce, func() {
		w.debounceMutex.Lock()
		if w.timers[path] != p {
			w.debounceMutex.Unlock()
			return
		}
		delete(w.timers, path)
		w.debounceMutex.Unlock()
		w.emit(scanning.FileEvent{Path: path, EventType: eventType, Timestamp: time.Now()})
	})
	w.timers[path] = p
}

func (w *Watcher) cancelPending(path string) {
	w.debounceMutex.Lock()
	defer w.debounceMutex.Unlock()
	if p, ok := w.timers[path]; ok {
		p.timer.Stop()
		delete(w.timers, path)
	}
}

// isSupportedFile checks if the file has one of the configured extensions
func (w *Watcher) isSupportedFile(filePath string) bool {
	return w.extensions[strings.ToLower(filepath.Ext(filePath))]
}

func (w *Watcher) emit(event scanning.FileEvent) {
	select {
	case <-w.stopChan:
		return
	default:
	}

	select {
	case w.eventChan <- event:
		slog.Info("Emitted file event", "path", event.Path, "type", event.EventType)
	default:
		slog.Warn("Event channel full, dropping file event", "path", event.Path)
	}
}
