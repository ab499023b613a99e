package logcat

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	adberr "github.com/yosemite-go/goadb/errors"
)

func encodeV1Entry(pid, tid int32, sec, nsec uint32, priority byte, tag, msg string) []byte {
	payload := append([]byte{priority}, append([]byte(tag), 0)...)
	payload = append(payload, append([]byte(msg), 0)...)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(len(payload)))
	binary.Write(&buf, binary.LittleEndian, uint16(commonPrefixLen))
	binary.Write(&buf, binary.LittleEndian, pid)
	binary.Write(&buf, binary.LittleEndian, tid)
	binary.Write(&buf, binary.LittleEndian, sec)
	binary.Write(&buf, binary.LittleEndian, nsec)
	buf.Write(payload)
	return buf.Bytes()
}

func encodeV2Entry(pid, tid int32, sec, nsec, logID, uid uint32, priority byte, tag, msg string) []byte {
	payload := append([]byte{priority}, append([]byte(tag), 0)...)
	payload = append(payload, append([]byte(msg), 0)...)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(len(payload)))
	binary.Write(&buf, binary.LittleEndian, uint16(v2HeaderLenWithUID))
	binary.Write(&buf, binary.LittleEndian, pid)
	binary.Write(&buf, binary.LittleEndian, tid)
	binary.Write(&buf, binary.LittleEndian, sec)
	binary.Write(&buf, binary.LittleEndian, nsec)
	binary.Write(&buf, binary.LittleEndian, logID)
	binary.Write(&buf, binary.LittleEndian, uid)
	buf.Write(payload)
	return buf.Bytes()
}

func TestReadEntryDecodesV1Header(t *testing.T) {
	data := encodeV1Entry(100, 200, 1700000000, 123, 4, "MyTag", "hello world")
	r := NewReader(bytes.NewReader(data))

	entry, err := r.ReadEntry()
	require.NoError(t, err)
	assert.EqualValues(t, 100, entry.Pid)
	assert.EqualValues(t, 200, entry.Tid)
	assert.Equal(t, byte(4), entry.Priority)
	assert.Equal(t, "MyTag", entry.Tag)
	assert.Equal(t, "hello world", entry.Message)
	assert.Zero(t, entry.LogID)
}

func TestReadEntryDecodesV2HeaderWithLogIDAndUID(t *testing.T) {
	data := encodeV2Entry(1, 2, 3, 4, 5, 6, 6, "Tag", "msg")
	r := NewReader(bytes.NewReader(data))

	entry, err := r.ReadEntry()
	require.NoError(t, err)
	assert.EqualValues(t, 5, entry.LogID)
	assert.EqualValues(t, 6, entry.UID)
	assert.Equal(t, "Tag", entry.Tag)
	assert.Equal(t, "msg", entry.Message)
}

func TestReadEntryCleanEOFBetweenRecords(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	_, err := r.ReadEntry()
	assert.Equal(t, io.EOF, err)
}

func TestReadEntryShortHeaderRaisesEndOfStream(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x01, 0x00, 0x14, 0x00, 0x00}))
	_, err := r.ReadEntry()
	require.Error(t, err)
	assert.True(t, adberr.HasErrCode(err, adberr.EndOfStream))
}

func TestPumpStopsCleanlyAtEOF(t *testing.T) {
	data := append(
		encodeV1Entry(1, 1, 1, 1, 4, "A", "first"),
		encodeV1Entry(2, 2, 2, 2, 4, "B", "second")...,
	)
	r := NewReader(bytes.NewReader(data))

	var tags []string
	err := r.Pump(func(e *LogEntry) error {
		tags = append(tags, e.Tag)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, tags)
}

func TestBuildRequestJoinsBufferIDsLowercased(t *testing.T) {
	req := BuildRequest([]string{"Main", "SYSTEM"})
	assert.Equal(t, "shell:logcat -B -b main -b system", req)
}
