package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gofrs/flock"

	"tailcast/internal/config"
	"tailcast/internal/engine"
	"tailcast/internal/logging"
	"tailcast/internal/preflight"
	"tailcast/internal/server"
	"tailcast/internal/watch"
)

var (
	// ErrAlreadyRunning is returned when another process holds the lock.
	ErrAlreadyRunning = errors.New("another tailcast daemon instance is already running")
	// ErrAlreadyStarted is returned by a second Start on the same Daemon.
	ErrAlreadyStarted = errors.New("daemon already started")
)

const pidFileName = "tailcast.pid"

// Daemon couples one engine and one server under an instance lock.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	engine *engine.Engine
	server *server.Server

	lockPath string
	lock     *flock.Flock
	pidPath  string

	mu      sync.Mutex
	running bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	LockFilePath string        `json:"lock_file_path"`
	Address      string        `json:"address"`
	Engine       engine.Status `json:"engine"`
}

// New constructs a daemon from configuration. The watched path is required.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if err := cfg.RequireWatchPath(); err != nil {
		return nil, err
	}
	eng, err := engine.New(engine.Options{
		Path:           cfg.Watch.Path,
		Debounce:       cfg.DebounceWindow(),
		CatchupLines:   cfg.Watch.CatchupLines,
		ChunkSize:      cfg.Watch.ChunkSize,
		TruncatePolicy: watch.TruncatePolicy(cfg.Watch.TruncatePolicy),
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	srv := server.New(eng, server.Options{
		Bind:         cfg.Server.Bind,
		Token:        cfg.Server.Token,
		SendBuffer:   cfg.Server.SendBuffer,
		WriteTimeout: cfg.WriteTimeout(),
		PingInterval: cfg.PingInterval(),
		CatchupLines: cfg.Watch.CatchupLines,
		Logger:       logger,
	})
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		engine:   eng,
		server:   srv,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		pidPath:  PIDPath(cfg.Paths.StateDir),
	}, nil
}

// Start acquires the lock, runs preflight, then starts the engine and the
// server. Any failure unwinds what was started.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return ErrAlreadyStarted
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	started := false
	defer func() {
		if !started {
			_ = d.lock.Unlock()
		}
	}()

	if err := preflight.Failures(preflight.RunAll(d.cfg)); err != nil {
		return err
	}
	if err := d.engine.Start(ctx); err != nil {
		return err
	}
	if err := d.server.Start(ctx); err != nil {
		_ = d.engine.Close()
		return err
	}
	if err := writePIDFile(d.pidPath); err != nil {
		d.logger.Warn("write pid file failed", logging.String("pid_file", d.pidPath), logging.Error(err))
	}

	started = true
	d.running = true
	d.logger.Info("tailcast daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldPath, d.engine.Path()),
		logging.String("address", d.server.Addr()),
	)
	return nil
}

// Stop shuts the server and engine down and releases the lock. Subscribers
// receive a close frame.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	d.server.Stop()
	if err := d.engine.Close(); err != nil {
		d.logger.Warn("engine close reported error", logging.Error(err))
	}
	if err := os.Remove(d.pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.Warn("remove pid file failed", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running = false
	d.logger.Info("tailcast daemon stopped")
}

// Status reports runtime information.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	return Status{
		Running:      running,
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		Address:      d.server.Addr(),
		Engine:       d.engine.Status(),
	}
}

// Addr returns the bound listen address.
func (d *Daemon) Addr() string {
	return d.server.Addr()
}

// PIDPath returns the pid file location for a state directory.
func PIDPath(stateDir string) string {
	return filepath.Join(stateDir, pidFileName)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
