// Package lock implements archive locking: the
// create-exclusive lockfile that serializes concurrent writers to one
// archive, and the per-revision lock list stored in the archive itself.
package lock

import (
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/gnu-mirror-unofficial/rcs-go/archive"
	"github.com/gnu-mirror-unofficial/rcs-go/cleanup"
)

// Filename returns the lockfile path for an archive path, following the
// original convention of a sibling dotfile: "foo,v" locks via ",foo,".
func Filename(archivePath string) string {
	dir, base := splitPath(archivePath)
	return dir + "," + strings.TrimSuffix(base, "v")
}

func splitPath(p string) (dir, base string) {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", p
	}
	return p[:i+1], p[i+1:]
}

// File is an acquired archive lockfile.
type File struct {
	path string
	sff  *cleanup.SFF
}

// Acquire creates the archive's lockfile with O_CREAT|O_EXCL, registering it
// with reg so a fatal signal still removes it. A
// pre-existing lockfile means another rcs invocation is mid-update;
// Acquire fails rather than waiting, matching the original's no-blocking
// policy (the caller decides whether to retry).
func Acquire(reg *cleanup.Registry, archivePath string, disposition cleanup.Disposition) (*File, error) {
	path := Filename(archivePath)
	fd, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0444)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.Errorf("lock: %s is already locked for editing (another rcs process is running, or a previous one was interrupted)", archivePath)
		}
		return nil, errors.Wrapf(err, "lock: create %s", path)
	}
	fd.Close()
	sff := reg.Register(path, disposition)
	return &File{path: path, sff: sff}, nil
}

// Release removes the lockfile.
func (f *File) Release(reg *cleanup.Registry) {
	reg.Release(f.sff)
}

// Add records who as holding a lock on revision num, mirroring classic
// RCS's add_lock: fails if num is already locked by someone else unless force is
// set (the archive's strict-locking / -M override).
func Add(r *archive.Repository, num, who string, force bool) error {
	if existing, ok := r.Lock(num); ok && existing != who && !force {
		return errors.Errorf("lock: revision %s already locked by %s", num, existing)
	}
	if _, ok := r.DeltaByNum(num); !ok {
		return errors.Errorf("lock: revision %s does not exist", num)
	}
	r.SetLock(num, who)
	return nil
}

// Remove drops who's lock on revision num, mirroring classic RCS's remove_lock.
// It fails if num is unlocked, or locked by someone else and force is
// unset (non-owners need the archive's "break lock" privilege).
func Remove(r *archive.Repository, num, who string, force bool) error {
	existing, ok := r.Lock(num)
	if !ok {
		return errors.Errorf("lock: revision %s is not locked", num)
	}
	if existing != who && !force {
		return errors.Errorf("lock: revision %s is locked by %s, not %s", num, existing, who)
	}
	r.ClearLock(num)
	return nil
}

// FindCallerLock reports the revision who holds a lock on, if exactly one,
// mirroring classic RCS's find_caller_lock (used by co -l/-u's bare "lock
// *a* revision" shorthand and by ci's "which revision am I checking in"
// default).
func FindCallerLock(r *archive.Repository, who string) (string, bool) {
	found := ""
	count := 0
	for num, locker := range r.Locks() {
		if locker == who {
			found = num
			count++
		}
	}
	if count == 1 {
		return found, true
	}
	return "", false
}
