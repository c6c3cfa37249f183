// Package process implements the open-file table spec.md §1 reduces a
// "process" to: its only core-relevant responsibility is holding open
// File entries so the VFS can allocate file descriptors against it.
package process

import "github.com/yannickperrenet/slowfs/ofile"

// Process is a fixed-size Open File Table, one slot per possible
// descriptor.
type Process struct {
	OFT []*ofile.File
}

// New returns a Process whose table can hold numOpenFiles concurrently
// open descriptors (the RLIMIT_NOFILE-equivalent bound of spec.md §3/§5).
func New(numOpenFiles int) *Process {
	return &Process{OFT: make([]*ofile.File, numOpenFiles)}
}
