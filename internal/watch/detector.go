package watch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"tailcast/internal/logging"
)

// DefaultDebounce is the coalescing window used when none is configured.
const DefaultDebounce = 100 * time.Millisecond

// TruncatePolicy selects how a file observed below the known offset is handled.
type TruncatePolicy string

const (
	// TruncateHold keeps the known offset; nothing is emitted until the file
	// grows past it again.
	TruncateHold TruncatePolicy = "hold"
	// TruncateReset rewinds the known offset to zero and reads from the start.
	TruncateReset TruncatePolicy = "reset"
)

// DeltaReader extracts complete lines appended after an offset.
type DeltaReader interface {
	NewLines(path string, from int64) ([]string, int64, error)
}

// Sink receives non-empty line batches in file order.
type Sink func(lines []string)

// Offset is the last file position whose content has been emitted. Only the
// detector writes it; the atomic lets status readers observe it.
type Offset struct {
	v atomic.Int64
}

// Load returns the current offset.
func (o *Offset) Load() int64 { return o.v.Load() }

// Store replaces the current offset.
func (o *Offset) Store(value int64) { o.v.Store(value) }

// Config carries the detector inputs.
type Config struct {
	Path     string
	Debounce time.Duration
	Policy   TruncatePolicy
	FS       afero.Fs
	Reader   DeltaReader
	Offset   *Offset
	Sink     Sink
	Logger   *slog.Logger
}

// Detector turns bursts of change notifications into single size checks.
// Notify may be called from any goroutine; checks run only on the goroutine
// executing Run, so two checks never overlap.
type Detector struct {
	path     string
	debounce time.Duration
	policy   TruncatePolicy
	fs       afero.Fs
	reader   DeltaReader
	offset   *Offset
	sink     Sink
	logger   *slog.Logger

	signals chan struct{} // debounced check trigger; capacity 1

	mu      sync.Mutex
	pending *time.Timer
	stopped bool

	checks atomic.Uint64
}

// NewDetector builds a detector. A nil Offset allocates a private one.
func NewDetector(cfg Config) *Detector {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Policy == "" {
		cfg.Policy = TruncateHold
	}
	if cfg.FS == nil {
		cfg.FS = afero.NewOsFs()
	}
	if cfg.Offset == nil {
		cfg.Offset = &Offset{}
	}
	if cfg.Sink == nil {
		cfg.Sink = func([]string) {}
	}
	return &Detector{
		path:     cfg.Path,
		debounce: cfg.Debounce,
		policy:   cfg.Policy,
		fs:       cfg.FS,
		reader:   cfg.Reader,
		offset:   cfg.Offset,
		sink:     cfg.Sink,
		logger:   logging.NewComponentLogger(cfg.Logger, "detector"),
		signals:  make(chan struct{}, 1),
	}
}

// Notify records a raw change notification. The pending check, if any, is
// cancelled and rescheduled one debounce window from now.
func (d *Detector) Notify() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.pending != nil {
		d.pending.Stop()
	}
	d.pending = time.AfterFunc(d.debounce, d.signal)
}

func (d *Detector) signal() {
	select {
	case d.signals <- struct{}{}:
	default:
	}
}

// Run executes debounced checks until ctx is done.
func (d *Detector) Run(ctx context.Context) {
	defer d.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.signals:
			d.Check()
		}
	}
}

func (d *Detector) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
}

// Check performs one size check and emits any new complete lines. Failures
// leave the offset untouched so the next notification retries the same delta.
// Check must not be called while Run is active.
func (d *Detector) Check() {
	d.checks.Add(1)

	info, err := d.fs.Stat(d.path)
	if err != nil {
		d.logger.Debug("stat watched file failed", logging.String("path", d.path), logging.Error(err))
		return
	}
	size := info.Size()
	known := d.offset.Load()

	if size < known && d.policy == TruncateReset {
		d.logger.Info("watched file shrank; rewinding",
			logging.String("path", d.path),
			logging.Int64("size", size),
			logging.Int64("previous_offset", known),
		)
		known = 0
		d.offset.Store(0)
	}
	if size <= known {
		return
	}

	lines, next, err := d.reader.NewLines(d.path, known)
	if err != nil {
		d.logger.Debug("read appended lines failed", logging.String("path", d.path), logging.Error(err))
		return
	}
	d.offset.Store(next)
	if len(lines) > 0 {
		d.sink(lines)
	}
}

// Checks reports how many size checks have run.
func (d *Detector) Checks() uint64 {
	return d.checks.Load()
}
