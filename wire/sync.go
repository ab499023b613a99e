package wire

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"strconv"
	"time"

	adberr "github.com/yosemite-go/goadb/errors"
)

// This file implements the sync: service's binary sub-protocol (4-byte
// id + little-endian 32-bit length, as opposed to the hex-ASCII framing
// used everywhere else) to back the thin pass-throughs on Device:
// ListDirEntries, Stat, OpenRead, OpenWrite.

const (
	syncIDStat = "STAT"
	syncIDList = "LIST"
	syncIDSend = "SEND"
	syncIDRecv = "RECV"
	syncIDDent = "DENT"
	syncIDDone = "DONE"
	syncIDData = "DATA"
	syncIDOkay = "OKAY"
	syncIDFail = "FAIL"

	syncMaxChunk = 64 * 1024
)

// DirEntry is a single entry returned by the sync LIST service.
type DirEntry struct {
	Name       string
	Mode       os.FileMode
	Size       uint32
	ModifiedAt time.Time
}

// SyncScanner reads sync: protocol frames.
type SyncScanner interface {
	ReadID() (string, error)
	ReadInt32() (uint32, error)
	ReadBytes(n uint32) ([]byte, error)
	Close() error
}

// SyncSender writes sync: protocol frames.
type SyncSender interface {
	SendOctetString(id string) error
	SendInt32(n uint32) error
	SendBytes(data []byte) error
	Close() error
}

type realSyncScanner struct {
	reader *bufio.Reader
}

func (s *realSyncScanner) ReadID() (string, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(s.reader, buf); err != nil {
		return "", adberr.WrapErrorf(err, adberr.ProtocolFault, "error reading sync id")
	}
	return string(buf), nil
}

func (s *realSyncScanner) ReadInt32() (uint32, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(s.reader, buf); err != nil {
		return 0, adberr.WrapErrorf(err, adberr.ProtocolFault, "error reading sync length")
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (s *realSyncScanner) ReadBytes(n uint32) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.reader, buf); err != nil {
		return nil, adberr.WrapErrorf(err, adberr.ProtocolFault, "error reading %d sync bytes", n)
	}
	return buf, nil
}

func (s *realSyncScanner) Close() error { return nil }

type realSyncSender struct {
	writer io.Writer
}

func (s *realSyncSender) SendOctetString(id string) error {
	if len(id) != 4 {
		return adberr.AssertionErrorf("sync id must be 4 characters: %q", id)
	}
	_, err := s.writer.Write([]byte(id))
	return err
}

func (s *realSyncSender) SendInt32(n uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, n)
	_, err := s.writer.Write(buf)
	return err
}

func (s *realSyncSender) SendBytes(data []byte) error {
	_, err := s.writer.Write(data)
	return err
}

func (s *realSyncSender) Close() error { return nil }

// SyncConn is a Conn switched into sync: mode via the "sync:" service
// request; it multiplexes the LIST/STAT/SEND/RECV sub-commands.
type SyncConn struct {
	Scanner SyncScanner
	Sender  SyncSender
	closer  io.Closer
}

// NewSyncConn wraps conn (already past the "sync:" handshake) for
// sync-mode requests.
func (conn *Conn) NewSyncConn() *SyncConn {
	return &SyncConn{
		Scanner: conn.Scanner.NewSyncScanner(),
		Sender:  conn.Sender.NewSyncSender(),
		closer:  conn,
	}
}

func (s *SyncConn) Close() error {
	return s.closer.Close()
}

func sendSyncRequest(s *SyncConn, id, path string) error {
	if err := s.Sender.SendOctetString(id); err != nil {
		return err
	}
	if err := s.Sender.SendInt32(uint32(len(path))); err != nil {
		return err
	}
	return s.Sender.SendBytes([]byte(path))
}

// Stat issues a sync STAT request and returns the single DirEntry
// describing path.
func Stat(s *SyncConn, path string) (*DirEntry, error) {
	if err := sendSyncRequest(s, syncIDStat, path); err != nil {
		return nil, err
	}
	id, err := s.Scanner.ReadID()
	if err != nil {
		return nil, err
	}
	if id != syncIDStat {
		return nil, adberr.Errorf(adberr.ProtocolFault, "expected STAT, got %s", id)
	}
	mode, err := s.Scanner.ReadInt32()
	if err != nil {
		return nil, err
	}
	size, err := s.Scanner.ReadInt32()
	if err != nil {
		return nil, err
	}
	mtime, err := s.Scanner.ReadInt32()
	if err != nil {
		return nil, err
	}
	if mode == 0 && size == 0 && mtime == 0 {
		return nil, adberr.Errorf(adberr.FileNotFound, "remote object not found: %s", path)
	}
	return &DirEntry{
		Name:       path,
		Mode:       os.FileMode(mode),
		Size:       size,
		ModifiedAt: time.Unix(int64(mtime), 0),
	}, nil
}

// ListDirEntries issues a sync LIST request and returns every DirEntry
// until the server sends DONE.
func ListDirEntries(s *SyncConn, path string) ([]*DirEntry, error) {
	if err := sendSyncRequest(s, syncIDList, path); err != nil {
		return nil, err
	}
	var entries []*DirEntry
	for {
		id, err := s.Scanner.ReadID()
		if err != nil {
			return nil, err
		}
		if id == syncIDDone {
			return entries, nil
		}
		if id != syncIDDent {
			return nil, adberr.Errorf(adberr.ProtocolFault, "expected DENT or DONE, got %s", id)
		}
		mode, err := s.Scanner.ReadInt32()
		if err != nil {
			return nil, err
		}
		size, err := s.Scanner.ReadInt32()
		if err != nil {
			return nil, err
		}
		mtime, err := s.Scanner.ReadInt32()
		if err != nil {
			return nil, err
		}
		nameLen, err := s.Scanner.ReadInt32()
		if err != nil {
			return nil, err
		}
		nameBytes, err := s.Scanner.ReadBytes(nameLen)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &DirEntry{
			Name:       string(nameBytes),
			Mode:       os.FileMode(mode),
			Size:       size,
			ModifiedAt: time.Unix(int64(mtime), 0),
		})
	}
}

// syncReader streams a remote file's contents as DATA chunks until DONE.
type syncReader struct {
	s   *SyncConn
	buf []byte
}

func (r *syncReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		id, err := r.s.Scanner.ReadID()
		if err != nil {
			return 0, err
		}
		switch id {
		case syncIDDone:
			return 0, io.EOF
		case syncIDData:
			length, err := r.s.Scanner.ReadInt32()
			if err != nil {
				return 0, err
			}
			r.buf, err = r.s.Scanner.ReadBytes(length)
			if err != nil {
				return 0, err
			}
		case syncIDFail:
			length, err := r.s.Scanner.ReadInt32()
			if err != nil {
				return 0, err
			}
			msg, err := r.s.Scanner.ReadBytes(length)
			if err != nil {
				return 0, err
			}
			return 0, adberr.Errorf(adberr.AdbFailure, "%s", string(msg))
		default:
			return 0, adberr.Errorf(adberr.ProtocolFault, "unexpected sync id while reading: %s", id)
		}
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *syncReader) Close() error {
	return r.s.Close()
}

// ReceiveFile issues a sync RECV request and returns a reader streaming
// the remote file's contents.
func ReceiveFile(s *SyncConn, path string) (io.ReadCloser, error) {
	if err := sendSyncRequest(s, syncIDRecv, path); err != nil {
		return nil, err
	}
	return &syncReader{s: s}, nil
}

type syncWriter struct {
	s     *SyncConn
	mtime time.Time
}

func (w *syncWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > syncMaxChunk {
			chunk = chunk[:syncMaxChunk]
		}
		if err := w.s.Sender.SendOctetString(syncIDData); err != nil {
			return total, err
		}
		if err := w.s.Sender.SendInt32(uint32(len(chunk))); err != nil {
			return total, err
		}
		if err := w.s.Sender.SendBytes(chunk); err != nil {
			return total, err
		}
		total += len(chunk)
		p = p[len(chunk):]
	}
	return total, nil
}

func (w *syncWriter) Close() error {
	defer w.s.Close()
	if err := w.s.Sender.SendOctetString(syncIDDone); err != nil {
		return err
	}
	mtime := w.mtime
	if mtime.IsZero() {
		mtime = time.Now()
	}
	if err := w.s.Sender.SendInt32(uint32(mtime.Unix())); err != nil {
		return err
	}
	id, err := w.s.Scanner.ReadID()
	if err != nil {
		return err
	}
	if id != syncIDOkay {
		length, _ := w.s.Scanner.ReadInt32()
		msg, _ := w.s.Scanner.ReadBytes(length)
		return adberr.Errorf(adberr.AdbFailure, "%s", string(msg))
	}
	return nil
}

// SendFile issues a sync SEND request for path with the given
// permissions, returning a writer that uploads the file body and
// finalizes with mtime on Close.
func SendFile(s *SyncConn, path string, perms os.FileMode, mtime time.Time) (io.WriteCloser, error) {
	pathAndMode := path + "," + modeString(perms)
	if err := sendSyncRequest(s, syncIDSend, pathAndMode); err != nil {
		return nil, err
	}
	return &syncWriter{s: s, mtime: mtime}, nil
}

func modeString(perms os.FileMode) string {
	return strconv.Itoa(int(perms.Perm()))
}
