package tracefmt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

// Magic opens every trace file.
const Magic = "PSTR"

const (
	preambleLen = 16               // magic(4) + version(2) + reserved(2) + body length(8)
	maxBodyLen  = 16 * 1024 * 1024 // far above any capped run
	maxEntries  = 1 << 20
)

// Write writes t to w as a framed file and returns the BLAKE2b-256 hash
// of the body.
func Write(w io.Writer, t *Trace) ([32]byte, error) {
	body, err := t.MarshalBinary()
	if err != nil {
		return [32]byte{}, err
	}

	var preamble [preambleLen]byte
	copy(preamble[0:4], Magic)
	binary.LittleEndian.PutUint16(preamble[4:6], uint16(FormatVersion))
	binary.LittleEndian.PutUint64(preamble[8:16], uint64(len(body)))

	if _, err := w.Write(preamble[:]); err != nil {
		return [32]byte{}, fmt.Errorf("write preamble: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return [32]byte{}, fmt.Errorf("write body: %w", err)
	}
	return blake2b.Sum256(body), nil
}

// Read reads a trace written by Write and returns it with its body hash.
func Read(r io.Reader) (*Trace, [32]byte, error) {
	var preamble [preambleLen]byte
	if _, err := io.ReadFull(r, preamble[:]); err != nil {
		return nil, [32]byte{}, fmt.Errorf("read preamble: %w", err)
	}

	if magic := string(preamble[0:4]); magic != Magic {
		return nil, [32]byte{}, fmt.Errorf("invalid magic: got %q, expected %q", magic, Magic)
	}
	if version := binary.LittleEndian.Uint16(preamble[4:6]); version != uint16(FormatVersion) {
		return nil, [32]byte{}, fmt.Errorf("unsupported version: got 0x%04x, expected 0x%04x", version, FormatVersion)
	}

	bodyLen := binary.LittleEndian.Uint64(preamble[8:16])
	if bodyLen > maxBodyLen {
		return nil, [32]byte{}, fmt.Errorf("body length %d exceeds maximum %d", bodyLen, maxBodyLen)
	}

	var body bytes.Buffer
	if _, err := io.CopyN(&body, r, int64(bodyLen)); err != nil {
		return nil, [32]byte{}, fmt.Errorf("read body: %w", err)
	}

	t := &Trace{}
	if err := t.UnmarshalBinary(body.Bytes()); err != nil {
		return nil, [32]byte{}, err
	}
	return t, blake2b.Sum256(body.Bytes()), nil
}
