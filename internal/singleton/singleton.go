// Package singleton makes sure at most one process holds the live
// Discord connection on a host. A second connection with the same bot
// token steals the websocket session from the first, so a connected
// instance claims a lock file and retires any predecessor before it
// logs in.
package singleton

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const (
	lockFileMode    = 0o644
	lockDirMode     = 0o755
	retireWait      = 5 * time.Second
	retirePollEvery = 100 * time.Millisecond
)

var ErrHeldByLivePeer = errors.New("lock held by a live process that did not exit")

type lockRecord struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

type Guard struct {
	logger   *log.Logger
	path     string
	pid      int
	procScan bool
	procRoot string
	signal   func(pid int, sig syscall.Signal) error
}

type Option func(*Guard)

// WithoutProcScan disables the process-table sweep, leaving only the
// lock-file takeover. Tests use this to stay inside a temp dir.
func WithoutProcScan() Option {
	return func(g *Guard) { g.procScan = false }
}

// WithProcRoot points the process-table sweep at a different proc
// mount, for tests.
func WithProcRoot(root string) Option {
	return func(g *Guard) { g.procRoot = root }
}

func New(logger *log.Logger, lockPath string, opts ...Option) *Guard {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	g := &Guard{
		logger:   logger,
		path:     lockPath,
		pid:      os.Getpid(),
		procScan: true,
		procRoot: "/proc",
		signal:   syscall.Kill,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire retires any predecessor and writes a fresh lock record. It
// is called once at startup, before the Discord login.
func (g *Guard) Acquire() error {
	if g.procScan {
		g.retireSiblings()
	}

	prev, err := g.readLock()
	if err == nil && prev.PID > 0 && prev.PID != g.pid {
		if g.alive(prev.PID) {
			g.logger.Printf("retiring previous instance pid=%d", prev.PID)
			_ = g.signal(prev.PID, syscall.SIGTERM)
			if !g.waitGone(prev.PID, retireWait) {
				return fmt.Errorf("%w (pid %d)", ErrHeldByLivePeer, prev.PID)
			}
		} else {
			g.logger.Printf("reclaiming stale lock pid=%d", prev.PID)
		}
	}

	return g.writeLock()
}

// Release removes the lock only while it still names this process, so
// a newer instance that already took over is left undisturbed.
func (g *Guard) Release() {
	rec, err := g.readLock()
	if err != nil || rec.PID != g.pid {
		return
	}
	if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
		g.logger.Printf("remove lock file: %v", err)
	}
}

func (g *Guard) readLock() (lockRecord, error) {
	data, err := os.ReadFile(g.path)
	if err != nil {
		return lockRecord{}, err
	}
	var rec lockRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return lockRecord{}, fmt.Errorf("parse lock file: %w", err)
	}
	return rec, nil
}

func (g *Guard) writeLock() error {
	if err := os.MkdirAll(filepath.Dir(g.path), lockDirMode); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	data, err := json.Marshal(lockRecord{PID: g.pid, AcquiredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode lock record: %w", err)
	}
	if err := os.WriteFile(g.path, data, lockFileMode); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	return nil
}

// alive probes with signal 0, which delivers nothing but fails when
// the pid is gone.
func (g *Guard) alive(pid int) bool {
	return g.signal(pid, 0) == nil
}

func (g *Guard) waitGone(pid int, limit time.Duration) bool {
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		if !g.alive(pid) {
			return true
		}
		time.Sleep(retirePollEvery)
	}
	return !g.alive(pid)
}

// retireSiblings sweeps the process table for other processes running
// the same executable and asks them to exit. It covers instances that
// predate the lock file or lost it.
func (g *Guard) retireSiblings() {
	self, err := os.Executable()
	if err != nil {
		return
	}
	selfBase := filepath.Base(self)

	entries, err := os.ReadDir(g.procRoot)
	if err != nil {
		return
	}
	for _, entry := range entries {
		pid, err := parsePID(entry.Name())
		if err != nil || pid == g.pid {
			continue
		}
		cmdline, err := os.ReadFile(filepath.Join(g.procRoot, entry.Name(), "cmdline"))
		if err != nil {
			continue
		}
		argv0 := strings.SplitN(string(cmdline), "\x00", 2)[0]
		if argv0 == "" || filepath.Base(argv0) != selfBase {
			continue
		}
		g.logger.Printf("retiring sibling process pid=%d", pid)
		_ = g.signal(pid, syscall.SIGTERM)
		g.waitGone(pid, retireWait)
	}
}

func parsePID(name string) (int, error) {
	pid := 0
	for _, r := range name {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a pid: %s", name)
		}
		pid = pid*10 + int(r-'0')
	}
	if pid == 0 {
		return 0, fmt.Errorf("not a pid: %s", name)
	}
	return pid, nil
}
