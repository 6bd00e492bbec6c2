package main

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/opal-lang/pseudo/core/ast"
	"github.com/opal-lang/pseudo/runtime/lexer"
	"github.com/opal-lang/pseudo/runtime/parser"
)

func newFmtCommand(flags *globalFlags) *cobra.Command {
	var (
		write        bool
		dropComments bool
	)

	cmd := &cobra.Command{
		Use:   "fmt FILE",
		Short: "Print a program in canonical layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			source, err := readSource(path, cmd.InOrStdin())
			if err != nil {
				return err
			}
			tree := parser.Parse(source, parser.WithLogger(newLogger(cmd.ErrOrStderr(), flags.debug)))
			if tree.HasErrors() {
				formatDiagnostics(cmd.ErrOrStderr(), source, tree.Diagnostics(), ShouldUseColor(flags.noColor))
				return &exitError{code: 1}
			}
			formatted := ast.Format(tree.Program)

			if !write || path == "-" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), formatted)
				return err
			}
			if formatted == source {
				return nil
			}
			if hasComments(source, tree.Tokens) && !dropComments {
				return &CLIError{
					Type:    "input",
					Message: fmt.Sprintf("%s has comments, which the formatter does not keep", path),
					Hint:    "Pass --drop-comments to rewrite it anyway",
				}
			}
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			return os.WriteFile(path, []byte(formatted), info.Mode().Perm())
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Rewrite the file in place")
	cmd.Flags().BoolVar(&dropComments, "drop-comments", false, "Allow -w to remove comments")
	return cmd
}

// hasComments reports whether source holds text outside every token,
// which can only be comments.
func hasComments(source string, tokens []lexer.Token) bool {
	blank := func(s string) bool {
		return strings.TrimFunc(s, func(r rune) bool { return unicode.IsSpace(r) || r == '\ufeff' }) == ""
	}
	prev := 0
	for _, t := range tokens {
		start := t.Position.Offset
		if start < prev || start > len(source) {
			continue
		}
		if !blank(source[prev:start]) {
			return true
		}
		prev = min(start+len(t.Text), len(source))
	}
	return !blank(source[prev:])
}
