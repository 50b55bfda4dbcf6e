package indexing

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/rubyidx/internal/config"
	"github.com/standardbeagle/rubyidx/internal/debug"
)

// FileEventType represents the type of file system event
type FileEventType int

const (
	FileEventCreate FileEventType = iota
	FileEventWrite
	FileEventRemove
	FileEventRename
)

// Updater receives the debounced changes of a FileWatcher. *Service
// implements it.
type Updater interface {
	IndexFile(path string) error
	RemoveFile(path string) error
	RemoveTree(dir string) error
}

// FileWatcher monitors the project and dependency roots and feeds changed
// files to an Updater in debounced batches
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	config    *config.Config
	scanner   *Scanner
	updater   Updater
	debouncer *eventDebouncer
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once

	// Watch mode statistics
	eventsProcessed int64
	errorCount      int64
	lastEventTime   time.Time
	statsMu         sync.RWMutex

	onBatchEnd func(count int, duration time.Duration)
}

// NewFileWatcher creates a watcher for the scanner's roots
func NewFileWatcher(cfg *config.Config, scanner *Scanner, updater Updater) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	debounce := time.Duration(cfg.Index.WatchDebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = config.DefaultWatchDebounceMs * time.Millisecond
	}

	fw := &FileWatcher{
		watcher: watcher,
		config:  cfg,
		scanner: scanner,
		updater: updater,
		ctx:     ctx,
		cancel:  cancel,
	}
	fw.debouncer = newEventDebouncer(debounce, fw.flush)
	return fw, nil
}

// SetBatchCallback registers a function called after every applied batch
func (fw *FileWatcher) SetBatchCallback(onBatchEnd func(count int, duration time.Duration)) {
	fw.onBatchEnd = onBatchEnd
}

// Start adds watches under every root and begins processing events
func (fw *FileWatcher) Start() error {
	if !fw.config.Index.WatchMode {
		log.Printf("File watching disabled in configuration")
		return nil
	}

	visited := make(map[string]bool)
	for _, root := range fw.scanner.Roots() {
		if err := fw.addWatches(root, visited); err != nil {
			return fmt.Errorf("failed to add watches starting from %s: %w", root, err)
		}
	}

	fw.wg.Add(2)
	go fw.processEvents()
	go fw.debouncer.run(fw.ctx, &fw.wg)

	debug.LogIndexing("file watcher started for %d roots", len(fw.scanner.Roots()))
	return nil
}

// Stop stops the watcher. Events still being debounced are dropped.
func (fw *FileWatcher) Stop() error {
	fw.stopOnce.Do(func() {
		fw.cancel()
		if err := fw.watcher.Close(); err != nil {
			log.Printf("Error closing fsnotify watcher: %v", err)
		}
		fw.wg.Wait()
		log.Printf("File watcher stopped")
	})
	return nil
}

// addWatches watches every non-excluded directory below root. The real
// path of each directory is remembered so symlink cycles end.
func (fw *FileWatcher) addWatches(root string, visited map[string]bool) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	w := &walk{scanner: fw.scanner, root: root, dependency: root != fw.config.Project.Root, visited: visited}
	dirs, err := w.dirs(fw.ctx, root)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := fw.watcher.Add(dir); err != nil {
			log.Printf("Warning: failed to add watch for %s: %v", dir, err)
		}
	}
	return nil
}

func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.incrementStats(0, 1)
			log.Printf("File watcher error: %v", err)
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	debug.LogIndexing("FileWatcher: received event %v for path %s", event.Op, path)

	info, err := os.Stat(path)
	if err != nil {
		// Gone: either a file or a whole directory
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && fw.scanner.InRoots(path) {
			fw.debouncer.addEvent(path, FileEventRemove)
		}
		return
	}

	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			fw.watchNewDirectory(path)
		}
		return
	}

	if !fw.scanner.ShouldIndex(path) {
		return
	}
	if limit := fw.config.Index.MaxFileSize; limit > 0 && info.Size() > limit {
		debug.LogIndexing("FileWatcher: skipping oversized file %s (%d bytes > %d limit)", path, info.Size(), limit)
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		fw.debouncer.addEvent(path, FileEventCreate)
	case event.Op&fsnotify.Write != 0:
		fw.debouncer.addEvent(path, FileEventWrite)
	case event.Op&fsnotify.Rename != 0:
		fw.debouncer.addEvent(path, FileEventRename)
	}
}

// watchNewDirectory watches a directory created after Start together with
// its subdirectories, and queues the files already inside it (they may
// have been written before the watch existed)
func (fw *FileWatcher) watchNewDirectory(path string) {
	for _, root := range fw.scanner.Roots() {
		rel, ok := relative(root, path)
		if !ok {
			continue
		}
		w := &walk{scanner: fw.scanner, root: root, dependency: root != fw.config.Project.Root, visited: make(map[string]bool)}
		if w.enterDir(rel) != nil {
			return
		}
		dirs, err := w.dirs(fw.ctx, path)
		if err != nil {
			return
		}
		for _, dir := range dirs {
			if err := fw.watcher.Add(dir); err != nil {
				log.Printf("Warning: failed to add watch for new directory %s: %v", dir, err)
			}
		}
		for _, file := range w.files {
			fw.debouncer.addEvent(file, FileEventCreate)
		}
		return
	}
}

// flush applies one debounced batch: removals first, then changes and
// creations
func (fw *FileWatcher) flush(events map[string]FileEventType) {
	start := time.Now()
	var removes, updates []string
	for path, eventType := range events {
		if eventType == FileEventRemove {
			removes = append(removes, path)
		} else {
			updates = append(updates, path)
		}
	}

	failed := int64(0)
	for _, path := range removes {
		if err := fw.updater.RemoveTree(path); err != nil {
			failed++
		}
		if err := fw.updater.RemoveFile(path); err != nil {
			failed++
		}
	}
	for _, path := range updates {
		if err := fw.updater.IndexFile(path); err != nil {
			failed++
		}
	}
	fw.incrementStats(int64(len(events)), failed)

	debug.LogIndexing("FileWatcher: applied %d events (%d removals) in %v", len(events), len(removes), time.Since(start))
	if fw.onBatchEnd != nil {
		fw.onBatchEnd(len(events), time.Since(start))
	}
}

// eventDebouncer batches file events; the latest event per path wins
type eventDebouncer struct {
	mu       sync.Mutex
	events   map[string]FileEventType
	debounce time.Duration
	kick     chan struct{}
	flush    func(map[string]FileEventType)
}

func newEventDebouncer(debounce time.Duration, flush func(map[string]FileEventType)) *eventDebouncer {
	return &eventDebouncer{
		events:   make(map[string]FileEventType),
		debounce: debounce,
		kick:     make(chan struct{}, 1),
		flush:    flush,
	}
}

func (d *eventDebouncer) addEvent(path string, eventType FileEventType) {
	d.mu.Lock()
	d.events[path] = eventType
	d.mu.Unlock()

	select {
	case d.kick <- struct{}{}:
	default:
	}
}

func (d *eventDebouncer) take() map[string]FileEventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	events := d.events
	d.events = make(map[string]FileEventType)
	return events
}

// run restarts the timer on every event and flushes once events stop
// arriving for the debounce period. Nothing is flushed on shutdown.
func (d *eventDebouncer) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	timer := time.NewTimer(d.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.kick:
			timer.Reset(d.debounce)
		case <-timer.C:
			if events := d.take(); len(events) > 0 {
				d.flush(events)
			}
		}
	}
}

func (fw *FileWatcher) incrementStats(events int64, errors int64) {
	fw.statsMu.Lock()
	defer fw.statsMu.Unlock()
	fw.eventsProcessed += events
	fw.errorCount += errors
	if events > 0 {
		fw.lastEventTime = time.Now()
	}
}

// GetStats returns current watch mode statistics
func (fw *FileWatcher) GetStats() WatchStats {
	fw.statsMu.RLock()
	defer fw.statsMu.RUnlock()

	return WatchStats{
		EventsProcessed: fw.eventsProcessed,
		ErrorCount:      fw.errorCount,
		LastEventTime:   fw.lastEventTime,
		IsActive:        fw.ctx.Err() == nil,
	}
}

// WatchStats contains statistics about file watching operations
type WatchStats struct {
	EventsProcessed int64
	ErrorCount      int64
	LastEventTime   time.Time
	IsActive        bool
}
