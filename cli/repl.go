package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/opal-lang/pseudo/core/ast"
	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/runtime"
	"github.com/opal-lang/pseudo/runtime/builtins"
	"github.com/opal-lang/pseudo/runtime/executor"
	"github.com/opal-lang/pseudo/runtime/lexer"
	"github.com/opal-lang/pseudo/runtime/parser"
)

const (
	historyFile = ".pseudo_history"
	promptMain  = "pseudo> "
	promptCont  = "   ...> "
)

const replHelp = `Enter statements; blocks continue until their closing keyword.
A blank line submits an unfinished block so its errors are shown.
  :help   show this help
  :show   print the session program
  :reset  forget the session
  :quit   leave (or Ctrl+D)
`

func newReplCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive session; each entry runs after the ones before it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ln := liner.NewLiner()
			defer ln.Close()
			ln.SetCtrlCAborts(true)
			ln.SetCompleter(completer)

			home, _ := os.UserHomeDir()
			histPath := filepath.Join(home, historyFile)
			if f, err := os.Open(histPath); err == nil {
				_, _ = ln.ReadHistory(f)
				_ = f.Close()
			}

			logger := newLogger(cmd.ErrOrStderr(), flags.debug)
			s := &session{engine: runtime.NewEngine(runtime.WithEngineLogger(logger)), useColor: ShouldUseColor(flags.noColor)}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "pseudo %s. Type :help for help.\n", version)

			for {
				entry, ok := readEntry(ln)
				if !ok {
					_, _ = fmt.Fprintln(out)
					break
				}
				trimmed := strings.TrimSpace(entry)
				if trimmed == "" {
					continue
				}
				if strings.HasPrefix(trimmed, ":") {
					if s.command(out, trimmed) {
						break
					}
					continue
				}
				s.eval(cmd.Context(), entry, linerInput{ln}, out)
				ln.AppendHistory(strings.ReplaceAll(entry, "\n", " "))
			}

			if f, err := os.Create(histPath); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
			return nil
		},
	}
}

// readEntry reads lines until they parse without a missing block
// terminator. ok is false at end of input.
func readEntry(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl+C abandons the current entry.
			return "", true
		}
		if b.Len() > 0 && strings.TrimSpace(line) == "" {
			return b.String(), true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if !incomplete(b.String()) {
			return b.String(), true
		}
	}
}

// incomplete reports whether src only lacks a closing keyword.
func incomplete(src string) bool {
	tree := parser.Parse(src)
	for _, e := range tree.Errors {
		if e.Code == diag.CodeMissingTerminator {
			return true
		}
	}
	return false
}

func completer(line string) []string {
	start := strings.LastIndexFunc(line, func(r rune) bool {
		return !(r == '_' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) + 1
	prefix := line[start:]
	if prefix == "" {
		return nil
	}
	var out []string
	for _, word := range slices.Concat(lexer.Keywords(), builtins.Names()) {
		if strings.HasPrefix(word, strings.ToUpper(prefix)) {
			out = append(out, line[:start]+word)
		}
	}
	return out
}

// session replays its accepted entries before each new one, so names
// declared earlier stay visible. Answers to INPUT and the RAND seed are
// replayed too, which keeps earlier output identical; only new events
// are shown.
type session struct {
	engine   *runtime.Engine
	entries  []string
	inputs   []string
	shown    int
	useColor bool
}

func (s *session) source(entry string) string {
	return strings.Join(append(slices.Clone(s.entries), entry), "\n")
}

func (s *session) eval(ctx context.Context, entry string, input executor.InputSource, out io.Writer) {
	src := s.source(entry)
	v := s.engine.Validate(src)
	if !v.IsValid {
		formatDiagnostics(out, src, v.Errors, s.useColor)
		return
	}

	var answered []string
	config := executor.Config{
		Inputs: slices.Clone(s.inputs),
		Input: executor.InputFunc(func(prompt string) (string, error) {
			text, err := input.ReadLine(prompt)
			if err == nil {
				answered = append(answered, text)
			}
			return text, err
		}),
	}
	res, err := s.engine.Execute(ctx, src, config)
	if err != nil {
		FormatError(out, err, s.useColor)
		return
	}

	for _, e := range res.Events[min(s.shown, len(res.Events)):] {
		printEvent(out, out, e, s.useColor)
	}
	if !res.Success {
		return
	}
	s.entries = append(s.entries, entry)
	s.inputs = append(s.inputs, answered...)
	s.shown = len(res.Events)
}

// command handles a ":" command and reports whether the REPL should exit.
func (s *session) command(out io.Writer, line string) bool {
	switch strings.ToLower(strings.Fields(line)[0]) {
	case ":quit", ":q", ":exit":
		return true
	case ":help":
		_, _ = fmt.Fprint(out, replHelp)
	case ":reset":
		*s = session{engine: s.engine, useColor: s.useColor}
		_, _ = fmt.Fprintln(out, "session cleared")
	case ":show":
		tree := parser.Parse(s.source(""))
		_, _ = fmt.Fprint(out, ast.Format(tree.Program))
	default:
		_, _ = fmt.Fprintf(out, "unknown command %s (try :help)\n", line)
	}
	return false
}
