package server_test

import "syscall"

// newSocketpair creates a connected pair of Unix-domain stream socket fds
// for tests to wrap in os.File/net.FileConn, standing in for a real
// accepted connection without touching the filesystem.
func newSocketpair() ([2]int, error) {
	return syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
}
