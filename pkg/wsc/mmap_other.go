//go:build !unix

package wsc

import "os"

// loadBytes falls back to a whole-file read on non-unix platforms where
// golang.org/x/sys/unix's mmap is unavailable.
func loadBytes(path string) ([]byte, error) {
	return os.ReadFile(path)
}
