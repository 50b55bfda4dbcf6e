package indexing

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/standardbeagle/rubyidx/internal/config"
	"github.com/standardbeagle/rubyidx/internal/core"
	"github.com/standardbeagle/rubyidx/internal/debug"
	idxerrors "github.com/standardbeagle/rubyidx/internal/errors"
	"github.com/standardbeagle/rubyidx/internal/prefixtree"
)

// Build status values reported by Workspace.Status
const (
	StatusIdle      = "idle"
	StatusIndexing  = "indexing"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// WorkspaceStatus describes the last build of a workspace
type WorkspaceStatus struct {
	Status    string        `json:"status"`
	Root      string        `json:"root"`
	Files     int           `json:"files"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	Elapsed   time.Duration `json:"elapsed"`
	Watching  bool          `json:"watching"`
}

// Workspace owns one index together with everything that feeds it: the
// overlay, the indexing service, the scanner and, once Watch is called,
// the file watcher
type Workspace struct {
	cfg     *config.Config
	ix      *core.Index
	overlay *Overlay
	service *Service
	scanner *Scanner

	mu      sync.Mutex
	watcher *FileWatcher
	status  WorkspaceStatus
	closed  bool
}

// OpenWorkspace creates the index and indexing service for cfg. Nothing is
// indexed until Build is called.
func OpenWorkspace(cfg *config.Config) *Workspace {
	overlay := NewOverlay()
	ix := core.New(
		core.WithContentSource(overlay),
		core.WithSearchOptions(
			prefixtree.WithFuzzy(cfg.Search.EnableFuzzy),
			prefixtree.WithStemming(cfg.Search.EnableFuzzy),
			prefixtree.WithThreshold(cfg.Search.FuzzyThreshold),
		),
	)
	return &Workspace{
		cfg:     cfg,
		ix:      ix,
		overlay: overlay,
		service: NewService(ix, WithOverlay(overlay), WithConfig(cfg)),
		scanner: NewScanner(cfg),
		status:  WorkspaceStatus{Status: StatusIdle, Root: cfg.Project.Root},
	}
}

// Config returns the workspace configuration
func (w *Workspace) Config() *config.Config { return w.cfg }

// Index returns the workspace index
func (w *Workspace) Index() *core.Index { return w.ix }

// Service returns the indexing service
func (w *Workspace) Service() *Service { return w.service }

// Scanner returns the scanner computing the file set
func (w *Workspace) Scanner() *Scanner { return w.scanner }

// Build scans the roots and rebuilds the index from scratch. The build is
// bounded by the configured indexing timeout.
func (w *Workspace) Build(ctx context.Context) error {
	if timeout := w.cfg.Performance.IndexingTimeoutSec; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	start := time.Now()
	w.setStatus(func(s *WorkspaceStatus) {
		s.Status, s.Error, s.StartedAt, s.Elapsed, s.Files = StatusIndexing, "", start, 0, 0
	})

	paths, skipped, err := w.scanner.ScanReport(ctx)
	if err == nil {
		err = w.service.FullRebuild(ctx, paths)
	}
	if err == nil {
		for _, d := range skipped {
			w.ix.RecordDiagnostic(d)
		}
	}

	w.setStatus(func(s *WorkspaceStatus) {
		s.Elapsed = time.Since(start)
		s.Files = len(paths)
		switch {
		case err == nil:
			s.Status = StatusCompleted
		case errors.Is(err, context.Canceled):
			s.Status = StatusCancelled
		default:
			s.Status, s.Error = StatusFailed, err.Error()
		}
	})
	if err != nil {
		log.Printf("Indexing %s failed: %v", w.cfg.Project.Root, err)
	}
	return err
}

// Watch starts the file watcher. It is a no-op when watching is disabled
// or already running.
func (w *Workspace) Watch() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if w.watcher != nil || !w.cfg.Index.WatchMode {
		return nil
	}
	fw, err := NewFileWatcher(w.cfg, w.scanner, w.service)
	if err != nil {
		return err
	}
	fw.SetBatchCallback(func(count int, d time.Duration) {
		debug.LogIndexing("watch batch: %d events applied in %v", count, d)
	})
	if err := fw.Start(); err != nil {
		_ = fw.Stop()
		return err
	}
	w.watcher = fw
	w.status.Watching = true
	return nil
}

// WatchStats returns the watcher statistics, if a watcher runs
func (w *Workspace) WatchStats() (WatchStats, bool) {
	w.mu.Lock()
	fw := w.watcher
	w.mu.Unlock()
	if fw == nil {
		return WatchStats{}, false
	}
	return fw.GetStats(), true
}

// Status returns the state of the last build
func (w *Workspace) Status() WorkspaceStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	status := w.status
	if status.Status == StatusIndexing {
		status.Elapsed = time.Since(status.StartedAt)
	}
	return status
}

func (w *Workspace) setStatus(update func(*WorkspaceStatus)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	update(&w.status)
}

// Close stops the watcher and the writer lane and releases the index
func (w *Workspace) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	fw := w.watcher
	w.watcher = nil
	w.status.Watching = false
	w.mu.Unlock()

	var errs []error
	if fw != nil {
		errs = append(errs, fw.Stop())
	}
	errs = append(errs, w.service.Close(), w.ix.Close())
	return idxerrors.NewMultiError(errs).ErrorOrNil()
}
