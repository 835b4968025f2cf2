//go:build !windows

package server

import "golang.org/x/sys/unix"

// setReuseAddr lets a restarted resolver rebind its listening port while
// the previous socket still lingers in a TIME_WAIT-adjacent kernel state.
func setReuseAddr(fd uintptr) error {
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}
