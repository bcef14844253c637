// Package cleanup implements the "somewhat fleeting file" (SFF) registry:
// temporary files and the archive lockfile are
// registered here so that a fatal signal or an early return still unlinks
// them instead of leaving garbage behind.
//
// The original C registered a fixed-size array of SFFs and ran unlink()
// directly from a signal handler using only async-signal-safe calls. Go
// does not let us safely call arbitrary code (including unlink) from a
// signal handler either, but it gives us something better: signal.Notify
// delivers the signal on a regular goroutine, so the registry's Release
// logic can run as normal Go code instead of being limited to write()/
// _Exit(). We keep the spirit (single registry, protected by a mutex
// instead of a blocked signal mask) while dropping the C-specific
// async-signal-safety constraints that don't apply here.
package cleanup

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
)

// Disposition records whether an SFF was actually created, and if so
// whether it must be removed as the real (invoking) user or as the
// effective (privileged) user.
type Disposition int

const (
	NotMade Disposition = iota
	Real
	Effective
)

// SFF is one registered fleeting file.
type SFF struct {
	Path        string
	Disposition Disposition
}

// Registry is the process-wide (or test-scoped) list of fleeting files.
// The zero value is ready to use.
type Registry struct {
	mu       sync.Mutex
	entries  []*SFF
	sigCh    chan os.Signal
	stopOnce sync.Once
	onSignal func(sig os.Signal)
}

// NewRegistry returns a Registry with signal handling armed: SIGHUP, SIGINT,
// SIGQUIT, SIGPIPE, SIGTERM, SIGXCPU and SIGXFSZ all trigger ReleaseAll
// before the process exits nonzero, matching classic RCS's cancellation
// model.
func NewRegistry() *Registry {
	r := &Registry{sigCh: make(chan os.Signal, 1)}
	signal.Notify(r.sigCh,
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT,
		syscall.SIGPIPE, syscall.SIGTERM, syscall.SIGXCPU, syscall.SIGXFSZ)
	go r.watch()
	return r
}

func (r *Registry) watch() {
	for sig := range r.sigCh {
		r.ReleaseAll()
		if r.onSignal != nil {
			r.onSignal(sig)
		}
		os.Exit(1)
	}
}

// Stop disarms signal handling. Call once the invocation is done (defer it
// right after NewRegistry).
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { signal.Stop(r.sigCh); close(r.sigCh) })
}

// NewTempName returns a TMPDIR-relative temporary file path carrying prefix
// and a UUID suffix, so concurrent invocations across different archives
// never collide even
// though they share one TMPDIR.
func NewTempName(dir, prefix string) string {
	return dir + string(os.PathSeparator) + prefix + "-" + uuid.NewString()
}

// Register adds path to the registry with the given disposition and
// returns the SFF handle, which callers flip to NotMade once the file is
// consumed successfully (so cleanup skips it).
func (r *Registry) Register(path string, d Disposition) *SFF {
	s := &SFF{Path: path, Disposition: d}
	r.mu.Lock()
	r.entries = append(r.entries, s)
	r.mu.Unlock()
	return s
}

// Release unregisters and removes one SFF if it was actually made.
func (r *Registry) Release(s *SFF) {
	r.mu.Lock()
	for i, e := range r.entries {
		if e == s {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	releaseOne(s)
}

func releaseOne(s *SFF) {
	switch s.Disposition {
	case Real:
		os.Remove(s.Path)
	case Effective:
		if err := AsEffective(func() error {
			return os.Remove(s.Path)
		}); err != nil {
			os.Remove(s.Path) // best effort fallback
		}
	}
	s.Disposition = NotMade
}

// ReleaseAll removes every currently registered SFF, most-recently
// registered first (so a lockfile registered after its temp inputs is
// cleaned up before them, mirroring the original unwind order).
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = nil
	r.mu.Unlock()
	for i := len(entries) - 1; i >= 0; i-- {
		releaseOne(entries[i])
	}
}
