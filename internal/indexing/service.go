// Package indexing feeds the workspace index: it reads and parses files,
// runs every mutation on a single writer lane, drives full rebuilds,
// scans the workspace for Ruby sources and watches it for changes.
package indexing

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/rubyidx/internal/config"
	"github.com/standardbeagle/rubyidx/internal/core"
	"github.com/standardbeagle/rubyidx/internal/debug"
	idxerrors "github.com/standardbeagle/rubyidx/internal/errors"
	"github.com/standardbeagle/rubyidx/internal/extractor"
	"github.com/standardbeagle/rubyidx/internal/types"
)

var errBinaryContent = errors.New("binary content")

// Option configures a Service
type Option func(*Service)

// WithOverlay sets the open-document overlay. Pass the same overlay to
// core.WithContentSource so documentation lookups see unsaved text.
func WithOverlay(o *Overlay) Option {
	return func(s *Service) { s.overlay = o }
}

// WithExtractorOptions adds options to the extractor, for example extra
// enhancements
func WithExtractorOptions(opts ...extractor.Option) Option {
	return func(s *Service) { s.extractorOpts = append(s.extractorOpts, opts...) }
}

// WithMaxFileSize skips files larger than n bytes (0 = unlimited)
func WithMaxFileSize(n int64) Option {
	return func(s *Service) { s.maxFileSize = n }
}

// WithWorkers sets the parse parallelism of full rebuilds
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithRebuildWindow bounds how many parsed files a full rebuild may hold
// ahead of the apply cursor
func WithRebuildWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithEnhancements replaces the default enhancements
func WithEnhancements(e ...extractor.Enhancement) Option {
	return func(s *Service) {
		s.enhancements = e
	}
}

// WithConfig applies the size, performance and enhancement settings of cfg.
// Unknown enhancement names are logged and ignored.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		WithMaxFileSize(cfg.Index.MaxFileSize)(s)
		WithWorkers(cfg.Workers())(s)
		WithRebuildWindow(cfg.Performance.RebuildChunkSize)(s)
		if len(cfg.Index.Enhancements) == 0 {
			return
		}
		enabled := make([]extractor.Enhancement, 0, len(cfg.Index.Enhancements))
		for _, name := range cfg.Index.Enhancements {
			e, ok := extractor.EnhancementByName(name)
			if !ok {
				log.Printf("WARNING: unknown enhancement %q ignored", name)
				continue
			}
			enabled = append(enabled, e)
		}
		WithEnhancements(enabled...)(s)
	}
}

// Service turns file contents into index updates. Single-file updates are
// read and parsed on the writer lane; full rebuilds parse in parallel and
// apply on the lane.
type Service struct {
	ix        *core.Index
	writer    *Writer
	extractor *extractor.Extractor
	overlay   *Overlay

	extractorOpts []extractor.Option
	enhancements  []extractor.Enhancement
	maxFileSize   int64
	workers       int
	window        int

	// owned by the writer lane
	fingerprints map[string]uint64
}

// NewService creates a service writing into ix and starts its writer lane
func NewService(ix *core.Index, opts ...Option) *Service {
	s := &Service{
		ix:           ix,
		workers:      1,
		window:       config.DefaultRebuildChunkSize,
		enhancements: extractor.DefaultEnhancements(),
		fingerprints: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.overlay == nil {
		s.overlay = NewOverlay()
	}
	xopts := append([]extractor.Option{
		extractor.WithResolver(ix),
		extractor.WithEnhancements(s.enhancements...),
	}, s.extractorOpts...)
	s.extractor = extractor.New(xopts...)
	s.writer = NewWriter()
	return s
}

// Index returns the index the service writes into
func (s *Service) Index() *core.Index { return s.ix }

// Overlay returns the open-document overlay
func (s *Service) Overlay() *Overlay { return s.overlay }

// Content implements core.ContentSource
func (s *Service) Content(path string) ([]byte, error) {
	return s.overlay.Content(path)
}

// IndexFile schedules a reindex of path from the overlay or disk. A file
// that no longer exists is removed from the index.
func (s *Service) IndexFile(path string) error {
	return s.writer.Submit(path, func(context.Context) error {
		return s.reindex(path)
	})
}

// IndexContent records unsaved text for an open document and schedules
// its reindex
func (s *Service) IndexContent(path string, content []byte) error {
	s.overlay.Set(path, content)
	return s.IndexFile(path)
}

// CloseDocument drops the overlay text of path and reindexes it from disk
func (s *Service) CloseDocument(path string) error {
	s.overlay.Delete(path)
	return s.IndexFile(path)
}

// RemoveFile schedules the removal of everything path contributed
func (s *Service) RemoveFile(path string) error {
	return s.writer.Submit(path, func(context.Context) error {
		delete(s.fingerprints, path)
		return s.ix.RemoveFile(path)
	})
}

// RemoveTree schedules the removal of every indexed file at or below dir,
// used when a directory disappears
func (s *Service) RemoveTree(dir string) error {
	for _, path := range s.ix.Files() {
		if path == dir || isBelow(path, dir) {
			if err := s.RemoveFile(path); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush waits until every update scheduled before the call is applied
func (s *Service) Flush(ctx context.Context) error {
	return s.writer.Flush(ctx)
}

// Close stops the writer lane. Pending updates are dropped.
func (s *Service) Close() error {
	return s.writer.Close()
}

// FullRebuild clears the index and indexes paths. It runs on the writer
// lane: updates scheduled before it are applied first, updates scheduled
// during it are applied after. Files are parsed in parallel and applied
// one at a time in path order; cancellation stops between two files. A file
// whose extraction looked anything up in the index is extracted again when
// its turn comes, so the result does not depend on the parse schedule.
func (s *Service) FullRebuild(ctx context.Context, paths []string) error {
	return s.writer.Do(ctx, func(ctx context.Context) error {
		return s.rebuild(ctx, paths)
	})
}

func (s *Service) reindex(path string) error {
	content, failed := s.read(path)
	if failed != nil {
		return s.apply(*failed)
	}
	fp := xxhash.Sum64(content)
	if prev, ok := s.fingerprints[path]; ok && prev == fp {
		debug.LogIndexing("skipping %s: content unchanged", path)
		return nil
	}
	return s.apply(s.extract(path, content, fp))
}

// outcome is what reading and parsing one file produced
type outcome struct {
	path        string
	missing     bool
	entries     []types.Entry
	diags       []idxerrors.Diagnostic
	fingerprint uint64
	hashed      bool
	size        int

	// set when the entries depend on the index state at extraction time;
	// content is kept to extract again
	consulted bool
	content   []byte
}

// read loads path; a non-nil outcome means there is nothing to parse
func (s *Service) read(path string) ([]byte, *outcome) {
	content, err := s.overlay.Content(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, &outcome{path: path, missing: true}
	case err != nil:
		fe := idxerrors.NewFileError("read", path, err)
		return nil, &outcome{path: path, diags: []idxerrors.Diagnostic{idxerrors.FromError(path, fe)}}
	case s.maxFileSize > 0 && int64(len(content)) > s.maxFileSize:
		fe := idxerrors.NewFileTooLargeError(path, int64(len(content)), s.maxFileSize)
		return nil, &outcome{path: path, diags: []idxerrors.Diagnostic{idxerrors.FromError(path, fe)}, size: len(content)}
	case looksBinary(content):
		fe := idxerrors.NewFileError("read", path, errBinaryContent)
		return nil, &outcome{path: path, diags: []idxerrors.Diagnostic{idxerrors.FromError(path, fe)}, size: len(content)}
	}
	return content, nil
}

func (s *Service) extract(path string, content []byte, fp uint64) outcome {
	o := outcome{path: path, fingerprint: fp, hashed: true, size: len(content)}
	res, err := s.extractor.ExtractSource(path, content)
	if err != nil {
		o.diags = []idxerrors.Diagnostic{idxerrors.FromError(path, err)}
		return o
	}
	o.entries, o.diags = res.Entries, res.Diagnostics
	if res.ConsultedIndex {
		o.consulted, o.content = true, content
	}
	return o
}

func (s *Service) load(path string) outcome {
	content, failed := s.read(path)
	if failed != nil {
		return *failed
	}
	return s.extract(path, content, xxhash.Sum64(content))
}

// apply writes one outcome into the index. Runs on the writer lane.
func (s *Service) apply(o outcome) error {
	if o.missing {
		delete(s.fingerprints, o.path)
		return s.ix.RemoveFile(o.path)
	}
	if err := s.ix.ReindexFile(o.path, o.entries, o.diags); err != nil {
		return idxerrors.NewIndexingError("reindex", err).WithFile(o.path)
	}
	if o.hashed {
		s.fingerprints[o.path] = o.fingerprint
	} else {
		delete(s.fingerprints, o.path)
	}
	return nil
}

func (s *Service) rebuild(ctx context.Context, paths []string) (err error) {
	paths = slices.Clone(paths)
	slices.Sort(paths)
	paths = slices.Compact(paths)

	build := s.ix.BuildState()
	build.Start(len(paths))
	start := time.Now()
	defer func() { build.Finish(err) }()

	if err := s.ix.Clear(); err != nil {
		return err
	}
	clear(s.fingerprints)

	results := make([]outcome, len(paths))
	ready := make([]chan struct{}, len(paths))
	for i := range ready {
		ready[i] = make(chan struct{})
	}

	parseCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(parseCtx)
	g.SetLimit(s.workers)
	parse := func(i int) func() error {
		return func() error {
			defer close(ready[i])
			if gctx.Err() == nil {
				results[i] = s.load(paths[i])
			}
			return nil
		}
	}
	defer func() {
		cancel()
		_ = g.Wait()
	}()

	next, entries, diagnostics := 0, 0, 0
	for i := range paths {
		// keep the workers busy without running more than window ahead
		for next < len(paths) && next-i < s.window && g.TryGo(parse(next)) {
			next++
		}
		if next == i {
			g.Go(parse(next))
			next++
		}

		select {
		case <-ready[i]:
		case <-ctx.Done():
			return s.abandon(ctx, i, len(paths))
		}
		if ctx.Err() != nil {
			return s.abandon(ctx, i, len(paths))
		}

		o := results[i]
		results[i] = outcome{}
		if o.consulted {
			// parsed ahead of the cursor; the index now holds exactly the
			// files before this one
			o = s.extract(o.path, o.content, o.fingerprint)
		}
		if !o.missing {
			if err := s.apply(o); err != nil {
				return err
			}
			entries += len(o.entries)
			diagnostics += len(o.diags)
		}
		build.FileDone(o.size)
	}

	s.ix.MarkBuilt()
	log.Printf("Indexed %d files: %d entries, %d diagnostics in %v", len(paths), entries, diagnostics, time.Since(start).Round(time.Millisecond))
	return nil
}

func (s *Service) abandon(ctx context.Context, applied, total int) error {
	log.Printf("Rebuild cancelled after %d of %d files", applied, total)
	return ctx.Err()
}

func isBelow(path, dir string) bool {
	return strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}
