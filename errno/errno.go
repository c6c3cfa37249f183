// Package errno defines the POSIX-flavored error codes returned by
// every core slowfs component, per spec.md §7.
package errno

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Errno is a small negative integer matching a POSIX errno value. It
// satisfies the error interface so call sites can use it directly, or
// compare with errors.Is.
type Errno int

func (e Errno) Error() string {
	return fmt.Sprintf("slowfs: %s", unix.Errno(-e).Error())
}

// Is lets errors.Is(err, errno.ENOENT) work even if err has been
// wrapped with fmt.Errorf("...: %w", errno.ENOENT).
func (e Errno) Is(target error) bool {
	other, ok := target.(Errno)
	return ok && other == e
}

// The errno values the core needs, per spec.md §7. Each is the
// negative of the matching golang.org/x/sys/unix constant so that
// int(err) lines up with the classic C convention of returning
// -errno from a syscall-shaped function.
var (
	ENOENT  = Errno(-int(unix.ENOENT))
	EEXIST  = Errno(-int(unix.EEXIST))
	EBADF   = Errno(-int(unix.EBADF))
	EISDIR  = Errno(-int(unix.EISDIR))
	ENOTDIR = Errno(-int(unix.ENOTDIR))
	EINVAL  = Errno(-int(unix.EINVAL))
	ENOSPC  = Errno(-int(unix.ENOSPC))
	EDQUOT  = Errno(-int(unix.EDQUOT))
	EMFILE  = Errno(-int(unix.EMFILE))
	ENODEV  = Errno(-int(unix.ENODEV))
	ENXIO   = Errno(-int(unix.ENXIO))
)

// Name returns a short label for err suitable for a metrics label:
// "ok" for nil, the Errno's symbolic name if it is one, or "error"
// for anything else.
func Name(err error) string {
	if err == nil {
		return "ok"
	}
	switch {
	case errors.Is(err, ENOENT):
		return "ENOENT"
	case errors.Is(err, EEXIST):
		return "EEXIST"
	case errors.Is(err, EBADF):
		return "EBADF"
	case errors.Is(err, EISDIR):
		return "EISDIR"
	case errors.Is(err, ENOTDIR):
		return "ENOTDIR"
	case errors.Is(err, EINVAL):
		return "EINVAL"
	case errors.Is(err, ENOSPC):
		return "ENOSPC"
	case errors.Is(err, EDQUOT):
		return "EDQUOT"
	case errors.Is(err, EMFILE):
		return "EMFILE"
	case errors.Is(err, ENODEV):
		return "ENODEV"
	case errors.Is(err, ENXIO):
		return "ENXIO"
	default:
		return "error"
	}
}

// Lookup status codes, distinct from the errno range above (per
// spec.md §4.5 / GLOSSARY "lookup status").
const (
	// StatusFound indicates the full pathname resolved to an inode.
	StatusFound = 0
	// StatusNoEntry indicates every directory component resolved but
	// the final component does not exist.
	StatusNoEntry = -1
	// StatusNoAncestor indicates an intermediate directory component
	// is missing.
	StatusNoAncestor = -2
)
