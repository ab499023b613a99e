// Package logcat decodes the binary logger_entry stream produced by
// "shell:logcat -B".
package logcat

import (
	"bytes"
	"encoding/binary"
	"io"

	adberr "github.com/yosemite-go/goadb/errors"
)

// commonPrefixLen is the size of the fixed v1 header: u16 payload_len,
// u16 header_size, i32 pid, i32 tid, u32 sec, u32 nsec.
const commonPrefixLen = 20

// v2HeaderLen is the header size once the log id field is present.
const v2HeaderLen = 24

// v2HeaderLenWithUID is the header size once the uid field is also
// present.
const v2HeaderLenWithUID = 28

// Reader pumps logger_entry records off a "shell:logcat" connection.
type Reader struct {
	r io.Reader
}

// NewReader wraps conn (already past the logcat request's OKAY) as a
// Reader.
func NewReader(conn io.Reader) *Reader {
	return &Reader{r: conn}
}

// ReadEntry reads and decodes the next logger_entry record. A clean
// close with nothing buffered returns io.EOF; a short read mid-record
// returns an EndOfStream-coded error.
func (lr *Reader) ReadEntry() (*LogEntry, error) {
	prefix := make([]byte, 4)
	if _, err := io.ReadFull(lr.r, prefix); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, adberr.WrapErrorf(err, adberr.EndOfStream, "short read on logcat entry prefix")
	}

	payloadLen := binary.LittleEndian.Uint16(prefix[0:2])
	headerSize := binary.LittleEndian.Uint16(prefix[2:4])

	if headerSize < commonPrefixLen {
		return nil, adberr.Errorf(adberr.ProtocolFault, "implausible logcat header size %d", headerSize)
	}

	rest := make([]byte, headerSize-4)
	if _, err := io.ReadFull(lr.r, rest); err != nil {
		return nil, adberr.WrapErrorf(err, adberr.EndOfStream, "short read on logcat header")
	}
	header := bytes.NewReader(rest)

	entry := &LogEntry{HeaderSize: headerSize}
	var pid, tid int32
	var sec, nsec uint32
	for _, field := range []interface{}{&pid, &tid, &sec, &nsec} {
		if err := binary.Read(header, binary.LittleEndian, field); err != nil {
			return nil, adberr.WrapErrorf(err, adberr.EndOfStream, "short read on logcat header fields")
		}
	}
	entry.Pid, entry.Tid, entry.Sec, entry.Nsec = pid, tid, sec, nsec

	if headerSize >= v2HeaderLen {
		if err := binary.Read(header, binary.LittleEndian, &entry.LogID); err != nil {
			return nil, adberr.WrapErrorf(err, adberr.EndOfStream, "short read on logcat log id")
		}
	}
	if headerSize >= v2HeaderLenWithUID {
		if err := binary.Read(header, binary.LittleEndian, &entry.UID); err != nil {
			return nil, adberr.WrapErrorf(err, adberr.EndOfStream, "short read on logcat uid")
		}
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(lr.r, payload); err != nil {
		return nil, adberr.WrapErrorf(err, adberr.EndOfStream, "short read on logcat payload")
	}
	entry.Payload = payload

	if len(payload) > 0 {
		entry.Priority = payload[0]
		rest := payload[1:]
		if nul := bytes.IndexByte(rest, 0); nul >= 0 {
			entry.Tag = string(rest[:nul])
			msg := rest[nul+1:]
			if nul2 := bytes.IndexByte(msg, 0); nul2 >= 0 {
				entry.Message = string(msg[:nul2])
			} else {
				entry.Message = string(msg)
			}
		}
	}

	return entry, nil
}

// Pump calls fn for every entry until the stream ends (clean EOF) or an
// error occurs; a clean EOF is not reported to fn or returned as an
// error.
func (lr *Reader) Pump(fn func(*LogEntry) error) error {
	for {
		entry, err := lr.ReadEntry()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
}
