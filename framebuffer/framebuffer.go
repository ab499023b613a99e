// Package framebuffer reads screen captures from the "framebuffer:"
// service: a version-discriminated header followed by a size-prefixed
// pixel payload.
package framebuffer

import (
	"encoding/binary"
	"io"

	adberr "github.com/yosemite-go/goadb/errors"
)

// Header describes the pixel layout of a captured frame. ColorSpace is
// only populated for the current (version 2) header form; the legacy
// (version 1) form leaves it zero.
type Header struct {
	Version     uint32
	Bpp         uint32
	ColorSpace  uint32
	Size        uint32
	Width       uint32
	Height      uint32
	RedOffset   uint32
	RedLength   uint32
	BlueOffset  uint32
	BlueLength  uint32
	GreenOffset uint32
	GreenLength uint32
	AlphaOffset uint32
	AlphaLength uint32
}

// legacy (v1) header has no ColorSpace field: 13 uint32 words.
const legacyHeaderWords = 13

// current (v2+) header adds ColorSpace: 14 uint32 words.
const v2HeaderWords = 14

// Framebuffer is a refreshable screen capture: repeated calls to
// Refresh re-read the header and pixel payload, reusing the buffer when
// its size hasn't changed.
type Framebuffer struct {
	dial func() (io.ReadCloser, error)

	Header Header
	Pixels []byte
}

// New creates a Framebuffer that dials a fresh "framebuffer:" connection
// via dial on every Refresh.
func New(dial func() (io.ReadCloser, error)) *Framebuffer {
	return &Framebuffer{dial: dial}
}

// Refresh re-reads the header and pixel payload from a fresh
// connection. The Pixels buffer is reused when the reported size is
// unchanged from the previous Refresh.
func (f *Framebuffer) Refresh() error {
	conn, err := f.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	header, err := readHeader(conn)
	if err != nil {
		return err
	}

	if uint32(len(f.Pixels)) != header.Size {
		f.Pixels = make([]byte, header.Size)
	}
	if _, err := io.ReadFull(conn, f.Pixels); err != nil {
		return adberr.WrapErrorf(err, adberr.ProtocolFault, "short read on framebuffer pixels")
	}

	f.Header = header
	return nil
}

// readHeader reads the version word, then the rest of the
// version-appropriate header layout.
func readHeader(r io.Reader) (Header, error) {
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return Header{}, adberr.WrapErrorf(err, adberr.ProtocolFault, "short read on framebuffer version")
	}

	words := legacyHeaderWords
	if version >= 2 {
		words = v2HeaderWords
	}

	rest := make([]uint32, words-1)
	if err := binary.Read(r, binary.LittleEndian, &rest); err != nil {
		return Header{}, adberr.WrapErrorf(err, adberr.ProtocolFault, "short read on framebuffer header")
	}

	h := Header{Version: version}
	idx := 0
	next := func() uint32 {
		v := rest[idx]
		idx++
		return v
	}

	h.Bpp = next()
	if version >= 2 {
		h.ColorSpace = next()
	}
	h.Size = next()
	h.Width = next()
	h.Height = next()
	h.RedOffset = next()
	h.RedLength = next()
	h.BlueOffset = next()
	h.BlueLength = next()
	h.GreenOffset = next()
	h.GreenLength = next()
	h.AlphaOffset = next()
	h.AlphaLength = next()

	return h, nil
}
