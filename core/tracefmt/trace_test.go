package tracefmt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() *Trace {
	return &Trace{
		Version:      FormatVersion,
		SourceDigest: SourceDigest("OUTPUT 1\nOUTPUT 1 DIV 0"),
		Success:      false,
		Steps:        6,
		Entries: []Entry{
			{Kind: "output", Text: "1", Line: 1},
			{Kind: "error", Text: "Line 2: Runtime Error - Division by zero", Line: 2},
		},
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	a, err := sampleTrace().MarshalBinary()
	require.NoError(t, err)
	b, err := sampleTrace().MarshalBinary()
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := sampleTrace().MarshalBinary()
	require.NoError(t, err)

	var got Trace
	require.NoError(t, got.UnmarshalBinary(data))
	if diff := cmp.Diff(sampleTrace(), &got); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalRejectsUnknownVersion(t *testing.T) {
	tr := sampleTrace()
	tr.Version = 9
	data, err := tr.MarshalBinary()
	require.NoError(t, err)

	var got Trace
	assert.ErrorContains(t, got.UnmarshalBinary(data), "unsupported trace version 9")
}

func TestDigest(t *testing.T) {
	a, err := sampleTrace().Digest()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a, "blake2b:"))
	assert.Len(t, a, len("blake2b:")+64)

	changed := sampleTrace()
	changed.Entries[0].Text = "2"
	b, err := changed.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestWriteRead(t *testing.T) {
	var buf bytes.Buffer
	written, err := Write(&buf, sampleTrace())
	require.NoError(t, err)
	assert.Equal(t, Magic, buf.String()[:4])

	got, read, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, written, read)
	if diff := cmp.Diff(sampleTrace(), got); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
}

func TestReadRejectsCorruptInput(t *testing.T) {
	var good bytes.Buffer
	_, err := Write(&good, sampleTrace())
	require.NoError(t, err)
	data := good.Bytes()

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"short", data[:5], "read preamble"},
		{"bad magic", append([]byte("XXXX"), data[4:]...), "invalid magic"},
		{"truncated body", data[:len(data)-3], "read body"},
		{
			name: "oversized body",
			data: append(append([]byte{}, data[:8]...), 0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0),
			want: "exceeds maximum",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Read(bytes.NewReader(tt.data))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func FuzzRead(f *testing.F) {
	var buf bytes.Buffer
	if _, err := Write(&buf, sampleTrace()); err != nil {
		f.Fatal(err)
	}
	f.Add(buf.Bytes())
	f.Add([]byte(Magic))

	f.Fuzz(func(t *testing.T, data []byte) {
		tr, _, err := Read(bytes.NewReader(data))
		if err != nil {
			return
		}
		// Anything accepted re-encodes without error.
		if _, err := tr.MarshalBinary(); err != nil {
			t.Fatalf("re-encode: %v", err)
		}
	})
}
