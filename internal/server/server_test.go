package server_test

import (
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qobs-build/qgn/internal/server"
)

// roundTrip drives one full request/response cycle against a live Server
// bound to a real socket path in t.TempDir(), returning what the client's
// redirected stdout/stderr pipes captured.
func roundTrip(t *testing.T, s *server.Server, argv []string) (stdout, stderr string) {
	t.Helper()

	go s.ListenAndServe()
	t.Cleanup(func() { s.Close() })

	var conn net.Conn
	var err error
	for range 50 {
		conn, err = net.Dial("unix", s.SocketPath)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()

	outR, outW, err := os.Pipe()
	require.NoError(t, err)
	defer outW.Close()
	errR, errW, err := os.Pipe()
	require.NoError(t, err)
	defer errW.Close()

	require.NoError(t, server.WriteRequest(conn.(*net.UnixConn), argv, outW, errW))

	outBuf := make([]byte, 4096)
	outW.Close()
	n, _ := outR.Read(outBuf)
	errBuf := make([]byte, 4096)
	errW.Close()
	m, _ := errR.Read(errBuf)

	return string(outBuf[:n]), string(errBuf[:m])
}

func TestServerDescSuccess(t *testing.T) {
	root := t.TempDir()
	s := server.New(root+"/qgn.sock", func(label string) (string, error) {
		return "label: " + label + "\n", nil
	})

	stdout, _ := roundTrip(t, s, []string{"desc", "//lib:mylib"})
	assert.Contains(t, stdout, "label: //lib:mylib")
	assert.Contains(t, stdout, "exit 0")
}

func TestServerDescFailure(t *testing.T) {
	root := t.TempDir()
	s := server.New(root+"/qgn.sock", func(label string) (string, error) {
		return "", errors.New("no such target")
	})

	stdout, stderr := roundTrip(t, s, []string{"desc", "//lib:missing"})
	assert.Contains(t, stderr, "no such target")
	assert.Contains(t, stdout, "exit 1")
}

func TestServerUnsupportedCommand(t *testing.T) {
	root := t.TempDir()
	s := server.New(root+"/qgn.sock", nil)

	stdout, stderr := roundTrip(t, s, []string{"clean"})
	assert.Contains(t, stderr, "unsupported command")
	assert.Contains(t, stdout, "exit 1")
}
