package server

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/qobs-build/qgn/internal/msg"
)

// DescFunc answers the only command this server dispatches: render the
// resolved transitive data for one target label as text, the same
// rendering the "desc" CLI subcommand produces.
type DescFunc func(targetLabel string) (string, error)

// Server accepts one command per client connection over a Unix-domain
// socket, exactly as spec'd: dispatches on argv[0], redirects its own
// output to the connection's ancillary fds, and loops forever.
//
// Known gaps, carried deliberately rather than silently fixed: the bound
// socket path is never unlinked on Close or on process signal, so a second
// Listen at the same path will fail until the file is removed by hand; and
// a user-declared pool named "console" in a non-default toolchain is
// neither shadowed nor rejected anywhere in this server or in
// internal/resolved — both are unspecified behavior, flagged and left.
type Server struct {
	SocketPath string
	Desc       DescFunc

	listener *net.UnixListener
}

func New(socketPath string, desc DescFunc) *Server {
	return &Server{SocketPath: socketPath, Desc: desc}
}

// ListenAndServe binds SocketPath and serves connections until Close is
// called or the listener errors out. It does not return on success.
func (s *Server) ListenAndServe() error {
	addr, err := net.ResolveUnixAddr("unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("server: resolving socket path %q: %w", s.SocketPath, err)
	}
	l, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("server: listening on %q: %w", s.SocketPath, err)
	}
	s.listener = l
	msg.Info("server: listening on %s", s.SocketPath)

	for {
		conn, err := l.AcceptUnix()
		if err != nil {
			return fmt.Errorf("server: accept: %w", err)
		}
		go s.handle(conn)
	}
}

// Close stops accepting new connections. Per the Open Question this design
// flags rather than resolves, it does not unlink SocketPath.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handle(conn *net.UnixConn) {
	defer conn.Close()
	id := uuid.New()

	argv, stdout, stderr, err := ReadRequest(conn)
	if err != nil {
		msg.Warn("server[%s]: %v", id, err)
		return
	}
	defer stdout.Close()
	defer stderr.Close()

	code := s.dispatch(argv, stdout, stderr)
	fmt.Fprintf(stdout, "exit %d\n", code)
	msg.Info("server[%s]: %s -> exit %d", id, strings.Join(argv, " "), code)
}

// dispatch runs one command, writing its result to the client's redirected
// stdout/stderr, and returns the exit code the response line will carry.
// "desc" is the only defined command; anything else is unsupported.
func (s *Server) dispatch(argv []string, stdout, stderr *os.File) int {
	if len(argv) == 0 {
		fmt.Fprintln(stderr, "unsupported command")
		return 1
	}

	switch argv[0] {
	case "desc":
		if len(argv) < 2 {
			fmt.Fprintln(stderr, "desc: missing target label")
			return 1
		}
		out, err := s.Desc(argv[1])
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprint(stdout, out)
		return 0
	default:
		fmt.Fprintf(stderr, "unsupported command: %s\n", argv[0])
		return 1
	}
}
