package wire

import (
	"net"
	"syscall"
	"time"

	adberr "github.com/yosemite-go/goadb/errors"
)

// Conn is a connection to the adb server, either open for a single
// request/response exchange (host services) or left open for a
// streaming service (shell, logcat, framebuffer, install) after a
// successful device-transport handshake.
type Conn struct {
	Scanner
	Sender

	raw net.Conn
}

// NewConn wraps a Scanner/Sender pair (normally backed by the same
// socket) as a Conn.
func NewConn(scanner Scanner, sender Sender) *Conn {
	return &Conn{Scanner: scanner, Sender: sender}
}

// Dial opens a new TCP connection to addr (host:port) and wraps it as a
// Conn. Only TCP endpoints (IPv4, IPv6, or resolvable DNS names) are
// supported; any other network fails with NotSupported before dialing.
func Dial(network, addr string, timeout time.Duration) (*Conn, error) {
	if network != "tcp" && network != "tcp4" && network != "tcp6" {
		return nil, adberr.Errorf(adberr.NotSupported, "unsupported network family: %s", network)
	}

	dialer := net.Dialer{Timeout: timeout}
	raw, err := dialer.Dial(network, addr)
	if err != nil {
		return nil, adberr.WrapErrorf(err, adberr.ServerNotAvailable, "error connecting to %s", addr)
	}

	scanner, sender := NewScannerSender(raw)
	return &Conn{Scanner: scanner, Sender: sender, raw: raw}, nil
}

// Close closes the underlying connection. It is safe to call multiple
// times.
func (conn *Conn) Close() error {
	var err error
	if conn.Sender != nil {
		err = conn.Sender.Close()
	}
	return err
}

// RoundTripSingleResponse sends a message and reads a single
// length-prefixed response, failing if the server returns FAIL. This is
// the shape of most host: services.
func (conn *Conn) RoundTripSingleResponse(req []byte) ([]byte, error) {
	if err := conn.SendMessage(req); err != nil {
		return nil, err
	}
	if _, err := conn.ReadStatus(string(req)); err != nil {
		return nil, err
	}
	return conn.ReadMessage()
}

// SetDeadline propagates a deadline to the raw socket, when one is
// available (it is not, for MockServer-backed connections in tests).
func (conn *Conn) SetDeadline(t time.Time) error {
	if conn.raw == nil {
		return nil
	}
	return conn.raw.SetDeadline(t)
}

// SyscallConn exposes the underlying socket's raw file descriptor, for
// callers that need a non-blocking readiness check (shell.ReadAvailable's
// "bytes pending" peek). It fails with NotSupported when this Conn isn't
// backed by a real net.Conn, e.g. a MockServer-backed connection in
// tests.
func (conn *Conn) SyscallConn() (syscall.RawConn, error) {
	sc, ok := conn.raw.(syscall.Conn)
	if !ok {
		return nil, adberr.Errorf(adberr.NotSupported, "connection has no raw file descriptor")
	}
	return sc.SyscallConn()
}
