// Package shell drives an interactive "shell:" session: a long-lived
// bidirectional byte stream on which a prompt-recognising parser
// synchronises request/response pairs.
package shell

import (
	"strings"
	"sync"

	adberr "github.com/yosemite-go/goadb/errors"
	"github.com/yosemite-go/goadb/wire"
	"golang.org/x/sys/unix"
)

// State is one of the shell session's states.
type State int

const (
	WaitingForPrompt State = iota
	Idle
	Executing
	Terminal
)

type readResult struct {
	data []byte
	err  error
}

// ShellSocket owns a live "shell:" connection and recognises the
// interactive prompt on it via the State machine below.
type ShellSocket struct {
	conn *wire.Conn

	mu     sync.Mutex
	state  State
	prompt Prompt

	readCh chan readResult
}

// NewShellSocket wraps conn (already past the "shell:" handshake) as a
// ShellSocket and starts its background reader.
func NewShellSocket(conn *wire.Conn) *ShellSocket {
	s := &ShellSocket{
		conn:   conn,
		state:  WaitingForPrompt,
		readCh: make(chan readResult, 1),
	}
	go s.pump()
	return s
}

func (s *ShellSocket) pump() {
	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			s.readCh <- readResult{data: data}
		}
		if err != nil {
			s.readCh <- readResult{err: err}
			return
		}
	}
}

// Close force-terminates the session by closing the underlying socket.
func (s *ShellSocket) Close() error {
	s.mu.Lock()
	s.state = Terminal
	s.mu.Unlock()
	return s.conn.Close()
}

// SendCommand writes cmd followed by a newline, transitioning to
// Executing.
func (s *ShellSocket) SendCommand(cmd string) error {
	s.mu.Lock()
	s.state = Executing
	s.prompt.Valid = false
	s.mu.Unlock()

	if _, err := s.conn.Write([]byte(cmd + "\n")); err != nil {
		return adberr.WrapErrorf(err, adberr.NetworkError, "error sending shell command")
	}
	return nil
}

// pollReadable performs a zero-timeout poll on conn's raw file
// descriptor, when one is available. The second return value reports
// whether the check was actually performed (it isn't, for MockServer or
// net.Pipe-backed connections in tests, which fall back to the buffered
// select in ReadAvailable).
func pollReadable(conn *wire.Conn) (readable bool, supported bool) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return false, false
	}

	var n int
	cerr := raw.Read(func(fd uintptr) bool {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, _ = unix.Poll(fds, 0)
		return true
	})
	if cerr != nil {
		return false, false
	}
	return n > 0, true
}

// ReadAvailable reads whatever bytes are currently buffered on the
// socket. If wait is true and nothing is buffered yet, it blocks until
// some arrive. A buffer ending in a recognised prompt marks the session
// Idle with a fresh, valid prompt; any other read invalidates the stale
// prompt until a new one is matched.
func (s *ShellSocket) ReadAvailable(wait bool) (string, error) {
	if !wait {
		if readable, supported := pollReadable(s.conn); supported && !readable {
			return "", nil
		}
		select {
		case res := <-s.readCh:
			return s.consume(res)
		default:
			return "", nil
		}
	}

	res := <-s.readCh
	return s.consume(res)
}

func (s *ShellSocket) consume(res readResult) (string, error) {
	if res.err != nil {
		s.mu.Lock()
		s.state = Terminal
		s.mu.Unlock()
		return "", adberr.WrapErrorf(res.err, adberr.NetworkError, "error reading shell output")
	}

	text := string(res.data)

	s.mu.Lock()
	s.prompt.Valid = false
	if strings.HasSuffix(text, "$ ") || strings.HasSuffix(text, "# ") {
		if prompt, ok := matchPrompt(text); ok {
			s.prompt = prompt
			s.state = Idle
		}
	}
	s.mu.Unlock()

	return text, nil
}

// ReadToEnd repeatedly calls ReadAvailable(true), concatenating output
// until a prompt is recognised. If noPrompt is true, the terminating
// prompt text is stripped from the returned string (it is still
// consumed from the wire).
func (s *ShellSocket) ReadToEnd(noPrompt bool) (string, error) {
	var out strings.Builder
	for {
		chunk, err := s.ReadAvailable(true)
		if err != nil {
			return out.String(), err
		}
		out.WriteString(chunk)

		s.mu.Lock()
		valid := s.prompt.Valid
		promptMsg := s.prompt.Message
		s.mu.Unlock()

		if valid {
			result := out.String()
			if noPrompt {
				result = strings.TrimSuffix(result, promptMsg)
			}
			return result, nil
		}
	}
}

// GetPrompt returns the cached prompt if it's fresh and nothing is
// pending on the socket; otherwise it drains to the next prompt first.
func (s *ShellSocket) GetPrompt() (Prompt, error) {
	s.mu.Lock()
	fresh := s.prompt.Valid
	s.mu.Unlock()

	if fresh {
		if readable, supported := pollReadable(s.conn); !supported || !readable {
			s.mu.Lock()
			p := s.prompt
			s.mu.Unlock()
			return p, nil
		}
	}

	if _, err := s.ReadToEnd(false); err != nil {
		return Prompt{}, err
	}

	s.mu.Lock()
	p := s.prompt
	s.mu.Unlock()
	return p, nil
}

// Interact drains any pending output, sends cmd, and returns its output
// with the terminating prompt stripped.
func (s *ShellSocket) Interact(cmd string) (string, error) {
	if _, err := s.GetPrompt(); err != nil {
		return "", err
	}
	if err := s.SendCommand(cmd); err != nil {
		return "", err
	}
	return s.ReadToEnd(true)
}

// State returns the session's current state.
func (s *ShellSocket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
