// Package wire implements the low-level adb host-server wire protocol:
// the four-hex-digit length-prefixed request framing, the OKAY/FAIL status
// handshake, and length-prefixed string responses. Everything above a
// single request/response exchange (the client façade, shell sessions,
// streaming readers) is built on top of the primitives here.
package wire

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"net"

	adberr "github.com/yosemite-go/goadb/errors"
)

const (
	// StatusSuccess is the four-byte status word the server sends to
	// acknowledge a request.
	StatusSuccess = "OKAY"

	// StatusFailure is the four-byte status word the server sends before
	// a length-prefixed diagnostic message.
	StatusFailure = "FAIL"

	// maxMessageLength is the largest payload FormAdbRequest/ReadMessage
	// will encode or decode; the length header is 4 hex digits so
	// 0xFFFF is the protocol's own ceiling.
	maxMessageLength = 0xFFFF

	messageLengthHeaderLen = 4

	statusLen = 4
)

// FormAdbRequest encodes payload as an adb request frame: four uppercase
// hex digits giving len(payload), immediately followed by payload itself.
// The header is always uppercase and zero-padded to 4 digits.
func FormAdbRequest(payload string) ([]byte, error) {
	if len(payload) > maxMessageLength {
		return nil, adberr.Errorf(adberr.AssertionError,
			"message length must not exceed %d bytes: %d", maxMessageLength, len(payload))
	}
	header := fmt.Sprintf("%04X", len(payload))
	return []byte(header + payload), nil
}

// SendMessage writes payload to w, prefixed with its hex length header.
func SendMessage(w io.Writer, payload []byte) error {
	msg, err := FormAdbRequest(string(payload))
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return adberr.WrapErrorf(err, adberr.NetworkError, "error sending message")
	}
	return nil
}

// SendMessageString is a convenience wrapper around SendMessage for string
// payloads.
func SendMessageString(w io.Writer, payload string) error {
	return SendMessage(w, []byte(payload))
}

// readHexLength reads 4 ASCII hex digits from r and parses them as an
// unsigned length.
func readHexLength(r io.Reader) (int, error) {
	lengthBuf := make([]byte, messageLengthHeaderLen)
	if _, err := io.ReadFull(r, lengthBuf); err != nil {
		return 0, adberr.WrapErrorf(err, adberr.ProtocolFault, "error reading length header")
	}
	length, err := hex.DecodeString(string(lengthBuf))
	if err != nil {
		return 0, adberr.WrapErrorf(err, adberr.ProtocolFault, "invalid length header %q", lengthBuf)
	}
	// hex.DecodeString on a 4-char string yields 2 bytes; reassemble them
	// as a big-endian 16-bit integer the same way the 4-hex-digit header
	// is meant to be read.
	return int(length[0])<<8 | int(length[1]), nil
}

// ReadMessage reads a length-prefixed message from r: a 4-hex-digit
// length header followed by exactly that many bytes.
func ReadMessage(r io.Reader) ([]byte, error) {
	length, err := readHexLength(r)
	if err != nil {
		return nil, err
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, adberr.WrapErrorf(err, adberr.ProtocolFault,
			"error reading %d-byte message body", length)
	}
	return data, nil
}

// ReadStatus reads the 4-byte OKAY/FAIL status word following req (req is
// used only to annotate errors). On FAIL it reads the length-prefixed
// diagnostic message and returns it as an AdbFailure error.
func ReadStatus(r io.Reader, req string) (string, error) {
	status := make([]byte, statusLen)
	if _, err := io.ReadFull(r, status); err != nil {
		return "", adberr.WrapErrorf(err, adberr.ProtocolFault, "error reading status for %s", req)
	}

	switch string(status) {
	case StatusSuccess:
		return StatusSuccess, nil
	case StatusFailure:
		msg, err := ReadMessage(r)
		if err != nil {
			return "", adberr.WrapErrorf(err, adberr.ProtocolFault,
				"server returned error for %s, but couldn't read the message", req)
		}
		return "", adberr.Errorf(adberr.AdbFailure, "%s", string(msg)).WithDetails(req)
	default:
		return "", adberr.Errorf(adberr.ProtocolFault,
			"unexpected status for %s: %q", req, status)
	}
}

// Scanner reads adb protocol replies off a connection: status words and
// length-prefixed messages, plus raw bytes for streaming services
// (shell output, logcat records, framebuffer pixels) that aren't
// length-prefixed at this layer.
type Scanner interface {
	io.Reader
	ReadStatus(req string) (string, error)
	ReadMessage() ([]byte, error)
	ReadUntilEof() ([]byte, error)
	NewSyncScanner() SyncScanner
	Close() error
}

// Sender writes adb protocol requests to a connection, plus raw bytes
// for streaming services (shell stdin, the install APK body).
type Sender interface {
	io.Writer
	SendMessage(msg []byte) error
	NewSyncSender() SyncSender
	Close() error
}

type realScanner struct {
	reader *bufio.Reader
	closer io.Closer
}

func (s *realScanner) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *realScanner) ReadStatus(req string) (string, error) {
	return ReadStatus(s.reader, req)
}

func (s *realScanner) ReadMessage() ([]byte, error) {
	return ReadMessage(s.reader)
}

func (s *realScanner) ReadUntilEof() ([]byte, error) {
	data, err := io.ReadAll(s.reader)
	if err != nil {
		return nil, adberr.WrapErrorf(err, adberr.NetworkError, "error reading until EOF")
	}
	return data, nil
}

func (s *realScanner) NewSyncScanner() SyncScanner {
	return &realSyncScanner{reader: s.reader}
}

func (s *realScanner) Close() error {
	return s.closer.Close()
}

type realSender struct {
	writer io.Writer
	closer io.Closer
}

func (s *realSender) Write(p []byte) (int, error) {
	return s.writer.Write(p)
}

func (s *realSender) SendMessage(msg []byte) error {
	return SendMessage(s.writer, msg)
}

func (s *realSender) NewSyncSender() SyncSender {
	return &realSyncSender{writer: s.writer}
}

func (s *realSender) Close() error {
	return s.closer.Close()
}

// NewScannerSender wraps a net.Conn as a (Scanner, Sender) pair, sharing
// the same underlying socket for both halves.
func NewScannerSender(conn net.Conn) (Scanner, Sender) {
	scanner := &realScanner{reader: bufio.NewReader(conn), closer: conn}
	sender := &realSender{writer: conn, closer: conn}
	return scanner, sender
}
