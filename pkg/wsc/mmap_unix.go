//go:build unix

package wsc

import (
	"os"

	"golang.org/x/sys/unix"
)

// loadBytes mmaps path read-only on unix platforms, matching the reference
// WSC reader's "mmap-friendly" contract (spec.md §6): the kernel pages the
// file in on demand rather than the reader paying for one large read.
func loadBytes(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, ErrTruncated
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return data, nil
}
