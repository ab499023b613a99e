// Package receiver implements the pull-from-socket-to-push-to-callback
// inversion used by streaming shell output: a Receiver is handed complete
// lines as they arrive instead of the caller accumulating a whole
// response string.
package receiver

import (
	"bufio"
	"io"
	"strings"

	adberr "github.com/yosemite-go/goadb/errors"
)

// Receiver is the sink ExecuteRemoteCommand pushes lines into.
type Receiver interface {
	AddOutput(line string)
	Flush()
}

// MultiLineReceiver accumulates output lines into Lines; its Flush does
// nothing (embed it to reuse the buffering and override AddOutput for a
// streaming callback instead).
type MultiLineReceiver struct {
	Lines []string
}

// AddOutput appends line to the accumulated Lines.
func (r *MultiLineReceiver) AddOutput(line string) {
	r.Lines = append(r.Lines, line)
}

// Flush is a no-op; MultiLineReceiver has nothing to do at end-of-stream
// beyond what AddOutput already did.
func (r *MultiLineReceiver) Flush() {}

// FuncReceiver adapts a plain function into a Receiver, for callers that
// don't need to accumulate state across lines.
type FuncReceiver struct {
	OnLine  func(line string)
	OnFlush func()
}

func (r FuncReceiver) AddOutput(line string) {
	if r.OnLine != nil {
		r.OnLine(line)
	}
}

func (r FuncReceiver) Flush() {
	if r.OnFlush != nil {
		r.OnFlush()
	}
}

// PumpLines reads from r line by line (tolerating both "\n" and "\r\n"
// terminators, and not truncating a final line that lacks one) and hands
// each complete line to recv.AddOutput. It returns when r
// reaches EOF or a read error occurs; the caller's Flush is the caller's
// responsibility, not PumpLines's, so cancellation-swallowing logic stays
// with the caller that knows whether cancellation was requested.
func PumpLines(r io.Reader, recv Receiver) error {
	br := bufio.NewReader(r)
	var line strings.Builder

	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				if line.Len() > 0 {
					recv.AddOutput(line.String())
				}
				return nil
			}
			return adberr.WrapErrorf(err, adberr.NetworkError, "error reading shell output")
		}

		if b == '\n' {
			recv.AddOutput(strings.TrimSuffix(line.String(), "\r"))
			line.Reset()
			continue
		}
		line.WriteByte(b)
	}
}
