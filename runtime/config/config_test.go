package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opal-lang/pseudo/runtime/executor"
)

func TestParse(t *testing.T) {
	data := []byte(`
languageVersion: v1.0.0
stepLimit: 100000
timeout: 2s
maxCallDepth: 200
maxOutputEvents: 500
outputJoin: comma
randomSeed: 42
inputs: ["3", hello, 4.5]
`)
	f, err := Parse(data)
	require.NoError(t, err)

	want := &File{
		LanguageVersion: "v1.0.0",
		StepLimit:       100000,
		Timeout:         "2s",
		MaxCallDepth:    200,
		MaxOutputEvents: 500,
		OutputJoin:      "comma",
		RandomSeed:      42,
		Inputs:          []string{"3", "hello", "4.5"},
	}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseJSON(t *testing.T) {
	f, err := Parse([]byte(`{"stepLimit": 50, "outputJoin": "none"}`))
	require.NoError(t, err)
	assert.Equal(t, 50, f.StepLimit)
	assert.Equal(t, "none", f.OutputJoin)
}

func TestParseEmpty(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, &File{}, f)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
		wantMsg string
	}{
		{"unknown field", "stepLimt: 10", ErrInvalidConfig, "stepLimt"},
		{"negative limit", "stepLimit: -1", ErrInvalidConfig, "/stepLimit"},
		{"bad duration", "timeout: soon", ErrInvalidConfig, "/timeout"},
		{"bad join", "outputJoin: tab", ErrInvalidConfig, "/outputJoin"},
		{"not semver", "languageVersion: one", ErrInvalidConfig, "/languageVersion"},
		{"not a mapping", "- 1\n- 2", ErrInvalidConfig, ""},
		{"malformed yaml", "stepLimit: [", ErrInvalidConfig, ""},
		{"other major", "languageVersion: v2.0.0", ErrUnsupportedVersion, "engine implements"},
		{"newer minor", "languageVersion: v1.9.0", ErrUnsupportedVersion, "newer than"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				assert.ErrorContains(t, err, tt.wantMsg)
			}
		})
	}
}

func TestVersionWithoutPrefix(t *testing.T) {
	f, err := Parse([]byte("languageVersion: 1.1.0"))
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", f.LanguageVersion)
}

func TestApply(t *testing.T) {
	f := &File{
		StepLimit:  10,
		Timeout:    "250ms",
		OutputJoin: "comma",
		RandomSeed: 9,
		Inputs:     []string{"a", "b"},
	}
	base := executor.Config{MaxCallDepth: 7, Inputs: []string{"cli"}}

	got, err := f.Apply(base)
	require.NoError(t, err)
	assert.Equal(t, 10, got.StepLimit)
	assert.Equal(t, 250*time.Millisecond, got.Timeout)
	assert.Equal(t, 7, got.MaxCallDepth, "unset fields are kept")
	assert.Equal(t, executor.JoinComma, got.OutputJoin)
	assert.Equal(t, uint64(9), got.RandomSeed)
	assert.Equal(t, []string{"a", "b", "cli"}, got.Inputs)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("maxOutputEvents: 3\n"), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, f.MaxOutputEvents)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
