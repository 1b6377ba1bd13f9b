// Package server implements the query-server wire protocol: one command per
// client connection over a Unix-domain byte stream. A request is a u32
// big-endian length prefix followed by that many bytes of NUL-separated
// argv, preceded by ancillary data carrying two file descriptors (the
// client's stdout and stderr) via SCM_RIGHTS. The server redirects its
// response to those fds for the duration of the request and closes the
// connection; the server process itself loops forever.
//
// Ancillary fd passing is OS-level and has no third-party Go equivalent —
// this package uses stdlib syscall and net.UnixConn directly for it.
package server

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
)

// maxRequestSize bounds how much of a single connection's first message
// this server will read: a length prefix plus argv bytes, all sent in one
// sendmsg call by a well-behaved client.
const maxRequestSize = 64 * 1024

// ReadRequest decodes one request off conn: its argv, and the two fds its
// ancillary data carried (stdout then stderr). Callers must close both fds
// when done with them.
func ReadRequest(conn *net.UnixConn) (argv []string, stdout, stderr *os.File, err error) {
	buf := make([]byte, maxRequestSize)
	oob := make([]byte, syscall.CmsgSpace(2*4))

	n, oobn, _, _, err := conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("server: reading request: %w", err)
	}
	if n < 4 {
		return nil, nil, nil, fmt.Errorf("server: request shorter than its length prefix (%d bytes)", n)
	}

	length := binary.BigEndian.Uint32(buf[:4])
	if int(length) > n-4 {
		return nil, nil, nil, fmt.Errorf("server: declared argv length %d exceeds %d bytes received", length, n-4)
	}

	fds, err := extractFds(oob[:oobn])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("server: reading ancillary fds: %w", err)
	}
	if len(fds) != 2 {
		closeAll(fds)
		return nil, nil, nil, fmt.Errorf("server: expected 2 ancillary fds (stdout, stderr), got %d", len(fds))
	}

	argvBytes := buf[4 : 4+int(length)]
	argv = splitArgv(argvBytes)
	return argv, os.NewFile(uintptr(fds[0]), "client-stdout"), os.NewFile(uintptr(fds[1]), "client-stderr"), nil
}

// WriteRequest encodes and sends argv plus stdout/stderr as a single
// request, the client side of the protocol ReadRequest decodes. It exists
// for tests exercising the protocol end-to-end without a real CLI client.
func WriteRequest(conn *net.UnixConn, argv []string, stdout, stderr *os.File) error {
	payload := joinArgv(argv)
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)

	rights := syscall.UnixRights(int(stdout.Fd()), int(stderr.Fd()))
	_, _, err := conn.WriteMsgUnix(buf, rights, nil)
	return err
}

func splitArgv(b []byte) []string {
	s := strings.TrimRight(string(b), "\x00")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\x00")
}

func joinArgv(argv []string) []byte {
	return []byte(strings.Join(argv, "\x00"))
}

func extractFds(oob []byte) ([]int, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	msgs, err := syscall.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, err
	}
	var fds []int
	for _, m := range msgs {
		got, err := syscall.ParseUnixRights(&m)
		if err != nil {
			return nil, err
		}
		fds = append(fds, got...)
	}
	return fds, nil
}

func closeAll(fds []int) {
	for _, fd := range fds {
		syscall.Close(fd)
	}
}
