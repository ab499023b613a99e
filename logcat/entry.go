package logcat

import "strings"

// LogEntry is one decoded logger_entry record. Tag/Message are
// populated for the text log buffers (main, system, radio, crash,
// kernel); Payload holds the raw binary-tagged body for the events
// buffer, which this reader does not further decode.
type LogEntry struct {
	Pid  int32
	Tid  int32
	Sec  uint32
	Nsec uint32

	// LogID is only populated for v2+ headers (HeaderSize >= 24); UID
	// only when the header also carries it (HeaderSize >= 28).
	LogID uint32
	UID   uint32

	HeaderSize uint16
	Priority   byte
	Tag        string
	Message    string
	Payload    []byte
}

// BuildRequest renders the "shell:logcat -B -b <id> -b <id> ..." request
// for the given (case-insensitive) buffer ids.
func BuildRequest(ids []string) string {
	var b strings.Builder
	b.WriteString("shell:logcat -B")
	for _, id := range ids {
		b.WriteString(" -b ")
		b.WriteString(strings.ToLower(id))
	}
	return b.String()
}
