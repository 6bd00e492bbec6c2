package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opal-lang/pseudo/runtime"
	"github.com/opal-lang/pseudo/runtime/executor"
)

func TestSessionKeepsEarlierEntries(t *testing.T) {
	s := &session{engine: runtime.NewEngine()}
	var out bytes.Buffer
	noInput := executor.InputFunc(func(string) (string, error) { return "", errors.New("no terminal") })

	s.eval(context.Background(), "x ← 2\nOUTPUT x", noInput, &out)
	assert.Equal(t, "2\n", out.String())

	out.Reset()
	s.eval(context.Background(), "OUTPUT x * 3", noInput, &out)
	assert.Equal(t, "6\n", out.String(), "earlier output is not repeated")
	assert.Len(t, s.entries, 2)
}

func TestSessionRejectsInvalidEntry(t *testing.T) {
	s := &session{engine: runtime.NewEngine()}
	var out bytes.Buffer

	s.eval(context.Background(), "OUTPUT missing", nil, &out)
	assert.Contains(t, out.String(), "Line 1: Variable 'missing' used before declaration")
	assert.Empty(t, s.entries)
}

func TestSessionDropsFailedEntry(t *testing.T) {
	s := &session{engine: runtime.NewEngine()}
	var out bytes.Buffer

	s.eval(context.Background(), "OUTPUT 1 DIV 0", nil, &out)
	assert.Contains(t, out.String(), "Division by zero")
	assert.Empty(t, s.entries)
	assert.Equal(t, 0, s.shown)
}

func TestSessionReplaysInput(t *testing.T) {
	s := &session{engine: runtime.NewEngine()}
	var out bytes.Buffer
	prompts := 0
	input := executor.InputFunc(func(string) (string, error) {
		prompts++
		return "5", nil
	})

	s.eval(context.Background(), "INPUT n", input, &out)
	s.eval(context.Background(), "OUTPUT n + 1", input, &out)

	assert.Equal(t, 1, prompts, "answers are replayed, not asked again")
	assert.Equal(t, "6\n", out.String())
}

func TestSessionCommands(t *testing.T) {
	s := &session{engine: runtime.NewEngine(), entries: []string{"x<-1"}}
	var out bytes.Buffer

	assert.False(t, s.command(&out, ":show"))
	assert.Equal(t, "x ← 1\n", out.String())

	out.Reset()
	assert.False(t, s.command(&out, ":reset"))
	assert.Empty(t, s.entries)
	assert.NotNil(t, s.engine)

	assert.False(t, s.command(&out, ":nope"))
	assert.Contains(t, out.String(), "unknown command :nope")
	assert.True(t, s.command(&out, ":quit"))
}

func TestIncomplete(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"OUTPUT 1", false},
		{"IF TRUE THEN", true},
		{"IF TRUE THEN\n    OUTPUT 1", true},
		{"IF TRUE THEN\n    OUTPUT 1\nENDIF", false},
		{"FUNCTION F() RETURNS INTEGER", true},
		{"OUTPUT (", false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, incomplete(tt.src))
		})
	}
}

func TestCompleter(t *testing.T) {
	assert.Contains(t, completer("OUTPUT LEN"), "OUTPUT LENGTH")
	assert.Contains(t, completer("endw"), "ENDWHILE")
	assert.Nil(t, completer("OUTPUT "))
}

func TestWatcherCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.pseudo")
	var out bytes.Buffer
	w := &watcher{path: path, runToo: true, engine: runtime.NewEngine(), out: &out}

	require.NoError(t, os.WriteFile(path, []byte("OUTPUT 41 + 1\n"), 0o644))
	w.check(context.Background())
	assert.Contains(t, out.String(), "OK prog.pseudo")
	assert.Contains(t, out.String(), "42\n")

	out.Reset()
	require.NoError(t, os.WriteFile(path, []byte("OUTPUT y\n"), 0o644))
	w.check(context.Background())
	assert.Contains(t, out.String(), "prog.pseudo: 1 error(s)")
	assert.NotContains(t, out.String(), "OK")
}

func TestWatcherStopsWithContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.pseudo")
	require.NoError(t, os.WriteFile(path, []byte("OUTPUT 1\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	w := &watcher{path: path, engine: runtime.NewEngine(), out: &out}

	require.NoError(t, w.watch(ctx))
	assert.Contains(t, out.String(), "OK")
}
