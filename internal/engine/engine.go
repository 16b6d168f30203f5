// Package engine wires the change detector, the tail readers, and the
// broadcast hub around a single watched file.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"tailcast/internal/hub"
	"tailcast/internal/logging"
	"tailcast/internal/tail"
	"tailcast/internal/watch"
)

// DefaultCatchupLines is the catch-up batch size used when none is configured.
const DefaultCatchupLines = 10

var (
	// ErrPathRequired is returned by New when no file is given.
	ErrPathRequired = errors.New("watched path is required")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("engine already started")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("engine closed")
)

// Options configures an Engine. Non-positive numeric values fall back to
// package defaults, except CatchupLines where zero disables catch-up lines
// and only a negative value selects DefaultCatchupLines.
type Options struct {
	Path           string
	Debounce       time.Duration
	CatchupLines   int
	ChunkSize      int
	TruncatePolicy watch.TruncatePolicy
	FS             afero.Fs
	Logger         *slog.Logger
}

// Status is a point-in-time view of the engine.
type Status struct {
	Path            string    `json:"path"`
	LastKnownOffset int64     `json:"last_known_offset"`
	Running         bool      `json:"running"`
	Checks          uint64    `json:"checks"`
	StartedAt       time.Time `json:"started_at,omitzero"`
	UptimeSeconds   int64     `json:"uptime_seconds"`
	CatchupLines    int       `json:"catchup_lines"`
	ChunkSize       int       `json:"chunk_size"`
	TruncatePolicy  string    `json:"truncate_policy"`
	hub.Stats
}

// Engine tails one file and fans new lines out to registered subscribers.
type Engine struct {
	opts     Options
	fs       afero.Fs
	reader   *tail.Reader
	hub      *hub.Hub
	offset   watch.Offset
	detector *watch.Detector
	logger   *slog.Logger

	mu        sync.Mutex
	started   bool
	closed    bool
	startedAt time.Time
	cancel    context.CancelFunc
	runCtx    context.Context
	watcher   *watch.Watcher
	wg        sync.WaitGroup
}

// New validates opts and builds an idle engine.
func New(opts Options) (*Engine, error) {
	opts.Path = strings.TrimSpace(opts.Path)
	if opts.Path == "" {
		return nil, ErrPathRequired
	}
	opts.Path = filepath.Clean(opts.Path)
	if opts.Debounce <= 0 {
		opts.Debounce = watch.DefaultDebounce
	}
	if opts.CatchupLines < 0 {
		opts.CatchupLines = DefaultCatchupLines
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = tail.DefaultChunkSize
	}
	switch opts.TruncatePolicy {
	case "":
		opts.TruncatePolicy = watch.TruncateHold
	case watch.TruncateHold, watch.TruncateReset:
	default:
		return nil, fmt.Errorf("unsupported truncate policy %q", opts.TruncatePolicy)
	}
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}

	logger := logging.NewComponentLogger(opts.Logger, "engine").With(logging.String(logging.FieldPath, opts.Path))
	e := &Engine{
		opts:   opts,
		fs:     opts.FS,
		reader: tail.NewReader(opts.FS, opts.ChunkSize),
		logger: logger,
	}
	e.hub = hub.New(func() ([]string, error) {
		return e.CatchUp(opts.CatchupLines)
	}, opts.Logger)
	e.detector = watch.NewDetector(watch.Config{
		Path:     opts.Path,
		Debounce: opts.Debounce,
		Policy:   opts.TruncatePolicy,
		FS:       opts.FS,
		Reader:   e.reader,
		Offset:   &e.offset,
		Sink:     e.broadcast,
		Logger:   opts.Logger,
	})
	return e, nil
}

// Start records the current file size as the starting offset, registers the
// file watch, and runs the pipeline in the background until ctx ends or Close
// is called. A watch registration failure is returned and nothing is started.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.started {
		return ErrAlreadyStarted
	}

	if info, err := e.fs.Stat(e.opts.Path); err == nil {
		e.offset.Store(info.Size())
	} else {
		e.offset.Store(0)
		e.logger.Info("watched file not readable yet; starting from offset 0", logging.Error(err))
	}

	watcher, err := watch.NewWatcher(e.opts.Path, e.detector, e.opts.Logger)
	if err != nil {
		return fmt.Errorf("start file watch: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.runCtx = runCtx
	e.watcher = watcher
	e.started = true
	e.startedAt = time.Now()

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		watcher.Run(runCtx)
	}()
	go func() {
		defer e.wg.Done()
		e.detector.Run(runCtx)
	}()

	e.logger.Info("tail engine started",
		logging.String("watch", watcher.Path()),
		logging.Int64("offset", e.offset.Load()),
		logging.Duration("debounce", e.opts.Debounce),
		logging.Int("catchup_lines", e.opts.CatchupLines),
	)
	return nil
}

func (e *Engine) broadcast(lines []string) {
	results := e.hub.Broadcast(lines)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	e.logger.Debug("broadcast lines",
		logging.Int("lines", len(lines)),
		logging.Int("subscribers", len(results)),
		logging.Int("failed", failed),
	)
}

// Register adds a subscriber and sends it the catch-up batch.
func (e *Engine) Register(sub hub.Subscriber) error {
	return e.hub.Register(sub)
}

// Unregister removes a subscriber.
func (e *Engine) Unregister(sub hub.Subscriber) {
	e.hub.Unregister(sub)
}

// CatchUp returns the last n lines of the watched file.
func (e *Engine) CatchUp(n int) ([]string, error) {
	return e.reader.LastLines(e.opts.Path, n)
}

// Path returns the watched file.
func (e *Engine) Path() string {
	return e.opts.Path
}

// Status reports offsets and delivery counters.
func (e *Engine) Status() Status {
	e.mu.Lock()
	running := e.started && !e.closed && e.runCtx.Err() == nil
	startedAt := e.startedAt
	e.mu.Unlock()

	status := Status{
		Path:            e.opts.Path,
		LastKnownOffset: e.offset.Load(),
		Running:         running,
		Checks:          e.detector.Checks(),
		StartedAt:       startedAt,
		CatchupLines:    e.opts.CatchupLines,
		ChunkSize:       e.reader.ChunkSize(),
		TruncatePolicy:  string(e.opts.TruncatePolicy),
		Stats:           e.hub.Stats(),
	}
	if running {
		status.UptimeSeconds = int64(time.Since(startedAt).Seconds())
	}
	return status
}

// Close stops the pipeline, releases the watch, and closes every subscriber.
// It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	cancel := e.cancel
	watcher := e.watcher
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if watcher != nil {
		err = watcher.Close()
	}
	e.wg.Wait()
	e.hub.Close()
	e.logger.Info("tail engine stopped")
	return err
}
