// Package tracefmt encodes execution traces deterministically so runs can
// be stored, compared and fingerprinted. Two runs of the same program with
// the same inputs produce byte-identical encodings and equal digests.
package tracefmt

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

// FormatVersion is the version of the canonical trace layout.
const FormatVersion uint8 = 1

// Entry is one event of a trace.
type Entry struct {
	Kind string `json:"kind" cbor:"1,keyasint"` // "output", "error" or "system"
	Text string `json:"text" cbor:"2,keyasint"`
	Line int    `json:"line,omitempty" cbor:"3,keyasint,omitempty"`
}

// Trace is the deterministic part of an execution result. Wall-clock
// timings are excluded.
type Trace struct {
	Version      uint8   `json:"version" cbor:"1,keyasint"`
	SourceDigest string  `json:"sourceDigest,omitempty" cbor:"2,keyasint,omitempty"`
	Success      bool    `json:"success" cbor:"3,keyasint"`
	Steps        int     `json:"steps" cbor:"4,keyasint"`
	Entries      []Entry `json:"entries" cbor:"5,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("tracefmt: CBOR encoder: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: maxEntries,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("tracefmt: CBOR decoder: %v", err))
	}
}

// MarshalBinary produces the canonical CBOR encoding of t.
func (t *Trace) MarshalBinary() ([]byte, error) {
	// Alias avoids recursing into MarshalBinary.
	type traceAlias Trace
	data, err := encMode.Marshal((*traceAlias)(t))
	if err != nil {
		return nil, fmt.Errorf("CBOR encoding failed: %w", err)
	}
	return data, nil
}

// UnmarshalBinary decodes a canonical CBOR trace.
func (t *Trace) UnmarshalBinary(data []byte) error {
	type traceAlias Trace
	if err := decMode.Unmarshal(data, (*traceAlias)(t)); err != nil {
		return fmt.Errorf("CBOR decoding failed: %w", err)
	}
	if t.Version != FormatVersion {
		return fmt.Errorf("unsupported trace version %d", t.Version)
	}
	return nil
}

// Digest computes the BLAKE2b-256 hash of the canonical encoding.
// Returns hex-encoded hash: "blake2b:a3f8b2c1d4e5f6a7..."
func (t *Trace) Digest() (string, error) {
	data, err := t.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize trace for digest: %w", err)
	}
	return fmt.Sprintf("blake2b:%x", blake2b.Sum256(data)), nil
}

// SourceDigest fingerprints program text in the same notation as Digest.
func SourceDigest(source string) string {
	return fmt.Sprintf("blake2b:%x", blake2b.Sum256([]byte(source)))
}
