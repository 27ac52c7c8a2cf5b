package builtin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nerrad567/uts-core/internal/catalog"
	"github.com/nerrad567/uts-core/internal/component"
)

// ProcessStatus is the state of a daemon's subprocess.
type ProcessStatus string

const (
	ProcessStopped ProcessStatus = "stopped"
	ProcessRunning ProcessStatus = "running"
	ProcessFailed  ProcessStatus = "failed"
)

// Daemon option defaults.
const (
	defaultRestartDelay    = 5 * time.Second
	defaultMaxRestarts     = 10
	defaultGracefulTimeout = 10 * time.Second
)

// DaemonConfig holds the settings of a supervised subprocess.
type DaemonConfig struct {
	// Binary is the executable, looked up in PATH when not absolute.
	Binary string

	Args []string

	// Env are additional environment variables (key=value format).
	Env []string

	// WorkDir is the working directory. Empty inherits the daemon's.
	WorkDir string

	// Restart re-launches the process after it exits with an error.
	Restart bool

	RestartDelay time.Duration

	// MaxRestarts limits restart attempts. 0 means unlimited.
	MaxRestarts int

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration
}

// daemonConfig decodes the options of a Daemon.
func daemonConfig(opts component.Options) (DaemonConfig, error) {
	cfg := DaemonConfig{
		Binary:  strings.TrimSpace(opts.GetString("binary", "")),
		Args:    opts.GetStrings("args"),
		Env:     opts.GetStrings("env"),
		WorkDir: opts.GetString("workdir", ""),
	}
	if cfg.Binary == "" {
		return cfg, fmt.Errorf("%w: binary", ErrMissingOption)
	}

	var err error
	if cfg.Restart, err = opts.GetBool("restart", true); err != nil {
		return cfg, err
	}
	if cfg.RestartDelay, err = opts.GetDuration("restart_delay", defaultRestartDelay); err != nil {
		return cfg, err
	}
	if cfg.MaxRestarts, err = opts.GetInt("max_restarts", defaultMaxRestarts); err != nil {
		return cfg, err
	}
	if cfg.GracefulTimeout, err = opts.GetDuration("graceful_timeout", defaultGracefulTimeout); err != nil {
		return cfg, err
	}
	if cfg.MaxRestarts < 0 || cfg.RestartDelay < 0 || cfg.GracefulTimeout <= 0 {
		return cfg, fmt.Errorf("%w: max_restarts, restart_delay and graceful_timeout must not be negative", component.ErrInvalidOption)
	}
	return cfg, nil
}

// Daemon is a driver that supervises an external process, typically the
// vendor daemon behind a piece of hardware. Its main starts the process,
// restarts it after failures and stops it when cancelled.
type Daemon struct {
	cfg    DaemonConfig
	logger component.Logger

	mu       sync.RWMutex
	path     string
	cmd      *exec.Cmd
	status   ProcessStatus
	restarts int
	lastErr  error
	started  time.Time
}

// NewDaemon is the factory of the Daemon class.
func NewDaemon(env catalog.Env) (component.Component, error) {
	cfg, err := daemonConfig(env.Options)
	if err != nil {
		return nil, err
	}
	return &Daemon{cfg: cfg, logger: component.WithFields(env.Logger), status: ProcessStopped}, nil
}

// Init checks the binary can be found and resets the restart counter.
func (d *Daemon) Init(context.Context) error {
	path, err := exec.LookPath(d.cfg.Binary)
	if err != nil {
		return fmt.Errorf("finding %s: %w", d.cfg.Binary, err)
	}

	d.mu.Lock()
	d.path = path
	d.restarts = 0
	d.lastErr = nil
	d.mu.Unlock()
	return nil
}

// Main runs the process until ctx is cancelled. It returns nil when the
// process exits cleanly or the daemon is stopped, the exit error when
// restarts are disabled, and ErrTooManyRestarts once the budget is spent.
func (d *Daemon) Main(ctx context.Context) error {
	for {
		exited, err := d.start()
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			d.terminate(exited)
			return nil
		case err := <-exited:
			d.setExited(err)
			if err == nil {
				d.logger.Info("process exited", "binary", d.cfg.Binary)
				return nil
			}
			d.logger.Warn("process exited unexpectedly", "binary", d.cfg.Binary, "error", err)
			if !d.cfg.Restart {
				return err
			}
		}

		d.mu.Lock()
		d.restarts++
		attempt := d.restarts
		d.mu.Unlock()

		if d.cfg.MaxRestarts > 0 && attempt > d.cfg.MaxRestarts {
			d.logger.Error("max restart attempts reached", "binary", d.cfg.Binary, "attempts", attempt)
			return fmt.Errorf("%w: %s failed %d times", ErrTooManyRestarts, d.cfg.Binary, attempt)
		}

		d.logger.Info("restarting process", "binary", d.cfg.Binary, "attempt", attempt, "delay", d.cfg.RestartDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d.cfg.RestartDelay):
		}
	}
}

// Shutdown kills the process if it outlived its main.
func (d *Daemon) Shutdown(context.Context) error {
	d.mu.RLock()
	cmd, status := d.cmd, d.status
	d.mu.RUnlock()
	if cmd == nil || status != ProcessRunning {
		return nil
	}

	d.logger.Warn("killing process left running", "binary", d.cfg.Binary, "pid", cmd.Process.Pid)
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing %s: %w", d.cfg.Binary, err)
	}
	return nil
}

// Describe reports the process status.
func (d *Daemon) Describe() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := map[string]any{
		"binary":   d.cfg.Binary,
		"status":   string(d.status),
		"restarts": d.restarts,
	}
	if d.status == ProcessRunning && d.cmd != nil {
		out["pid"] = d.cmd.Process.Pid
		out["uptime_seconds"] = int64(time.Since(d.started).Seconds())
	}
	if d.lastErr != nil {
		out["last_error"] = d.lastErr.Error()
	}
	return out
}

// Restarts returns how often the process was restarted since Init.
func (d *Daemon) Restarts() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.restarts
}

// start launches the process in its own process group. The returned channel
// receives the result of Wait.
func (d *Daemon) start() (chan error, error) {
	d.mu.RLock()
	path := d.path
	d.mu.RUnlock()
	if path == "" {
		path = d.cfg.Binary
	}

	cmd := exec.Command(path, d.cfg.Args...) //nolint:gosec // binary comes from operator configuration
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if d.cfg.Env != nil {
		cmd.Env = append(os.Environ(), d.cfg.Env...)
	}
	if d.cfg.WorkDir != "" {
		cmd.Dir = d.cfg.WorkDir
	}
	cmd.Stdout = outputWriter{logger: d.logger, stream: "stdout"}
	cmd.Stderr = outputWriter{logger: d.logger, stream: "stderr"}

	if err := cmd.Start(); err != nil {
		d.setExited(err)
		return nil, fmt.Errorf("starting %s: %w", d.cfg.Binary, err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
		close(exited)
	}()

	d.mu.Lock()
	d.cmd = cmd
	d.status = ProcessRunning
	d.started = time.Now()
	d.mu.Unlock()

	d.logger.Info("process started", "binary", d.cfg.Binary, "pid", cmd.Process.Pid)
	return exited, nil
}

// terminate sends SIGTERM to the process group, then SIGKILL after the
// graceful timeout.
func (d *Daemon) terminate(exited chan error) {
	d.mu.RLock()
	cmd := d.cmd
	d.mu.RUnlock()

	pid := cmd.Process.Pid
	d.logger.Info("stopping process", "binary", d.cfg.Binary, "pid", pid)
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		d.logger.Warn("failed to send SIGTERM to process group", "binary", d.cfg.Binary, "error", err)
	}

	select {
	case <-exited:
	case <-time.After(d.cfg.GracefulTimeout):
		d.logger.Warn("graceful stop timed out, sending SIGKILL", "binary", d.cfg.Binary, "timeout", d.cfg.GracefulTimeout)
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			d.logger.Error("failed to kill process group", "binary", d.cfg.Binary, "error", err)
		}
		<-exited
	}

	d.mu.Lock()
	d.status = ProcessStopped
	d.mu.Unlock()
}

func (d *Daemon) setExited(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.status = ProcessFailed
		d.lastErr = err
		return
	}
	d.status = ProcessStopped
}

// outputWriter logs each line a process writes.
type outputWriter struct {
	logger component.Logger
	stream string
}

func (w outputWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" {
			w.logger.Debug("process output", "stream", w.stream, "line", line)
		}
	}
	return len(p), nil
}
