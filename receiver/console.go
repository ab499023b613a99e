package receiver

import (
	"strings"

	adberr "github.com/yosemite-go/goadb/errors"
)

// ConsoleOutputReceiver wraps a MultiLineReceiver and additionally drops
// shell prompt echoes and raises typed errors for recognised failure
// patterns.
type ConsoleOutputReceiver struct {
	MultiLineReceiver

	// Err holds the first recognised error pattern seen, if any.
	Err error
}

// AddOutput ignores prompt-echo lines (starting with "#" or "$") and
// otherwise accumulates the line, recording the first matching failure
// pattern it recognises.
func (r *ConsoleOutputReceiver) AddOutput(line string) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "$") {
		return
	}

	if r.Err == nil {
		if code, ok := matchErrorPattern(line); ok {
			r.Err = adberr.Errorf(code, "%s", strings.TrimSpace(line))
		}
	}

	r.MultiLineReceiver.AddOutput(line)
}

func matchErrorPattern(line string) (adberr.ErrCode, bool) {
	switch {
	case strings.Contains(line, "not found"),
		strings.Contains(line, "No such file or directory"),
		strings.Contains(line, "applet not found"):
		return adberr.FileNotFound, true
	case strings.Contains(line, "Unknown option"):
		return adberr.UnknownOption, true
	case strings.Contains(line, "Aborting."):
		return adberr.CommandAborting, true
	case strings.Contains(line, "permission denied"), strings.Contains(line, "access denied"):
		return adberr.PermissionDenied, true
	default:
		return "", false
	}
}
