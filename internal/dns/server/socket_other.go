//go:build windows

package server

// setReuseAddr is a no-op on platforms without SO_REUSEADDR support wired
// through golang.org/x/sys/unix.
func setReuseAddr(fd uintptr) error {
	return nil
}
