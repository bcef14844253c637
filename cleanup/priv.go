package cleanup

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// The set-user-id discipline classic RCS follows: lockfile creation, rename,
// and the final chmod must run under the effective uid; ordinary reads run
// under the real uid. AsEffective/AsReal are scoped blocks that switch uid
// for the duration of fn and restore it afterwards, even on panic. Nested
// calls of the same kind are reference-counted so an inner AsEffective
// inside an outer AsEffective doesn't restore early.
var privMu sync.Mutex
var effDepth int

// AsEffective runs fn with the effective uid active.
func AsEffective(fn func() error) error {
	privMu.Lock()
	first := effDepth == 0
	effDepth++
	privMu.Unlock()

	if first {
		if err := seteuidSelf(); err != nil {
			privMu.Lock()
			effDepth--
			privMu.Unlock()
			return errors.Wrap(err, "cleanup: switch to effective uid")
		}
	}
	defer func() {
		privMu.Lock()
		effDepth--
		last := effDepth == 0
		privMu.Unlock()
		if last {
			setruidSelf()
		}
	}()
	return fn()
}

// AsReal runs fn with the real uid active, temporarily dropping any
// effective-uid privilege. Used to make sure reads (e.g. of the working
// file) never happen with elevated privilege.
func AsReal(fn func() error) error {
	ruid := unix.Getuid()
	euid := unix.Geteuid()
	if ruid == euid {
		return fn()
	}
	if err := unix.Seteuid(ruid); err != nil {
		return errors.Wrap(err, "cleanup: switch to real uid")
	}
	defer unix.Seteuid(euid)
	return fn()
}

// savedEUID is the effective uid the process started with; setruidSelf
// drops it, and seteuidSelf switches back to it.
var savedEUID = unix.Geteuid()

func seteuidSelf() error {
	return unix.Seteuid(savedEUID)
}

func setruidSelf() {
	// Best-effort restore; on most systems where this binary is not
	// installed set-user-id, real and effective uid already coincide and
	// this is a no-op.
	unix.Seteuid(unix.Getuid())
}
