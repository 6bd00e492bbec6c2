package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opal-lang/pseudo/runtime/lexer"
)

func newTokensCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tokens FILE",
		Short: "Print the token stream of a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			tokens, diags := lexer.Tokenize(source, lexer.WithLogger(newLogger(cmd.ErrOrStderr(), flags.debug)))

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, t := range tokens {
				_, _ = fmt.Fprintf(tw, "%d:%d\t%s\t%s\t%q\n", t.Position.Line, t.Position.Column, t.Type, t.Kind(), t.Text)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if len(diags) > 0 {
				formatDiagnostics(cmd.ErrOrStderr(), source, diags, ShouldUseColor(flags.noColor))
				return &exitError{code: 1}
			}
			return nil
		},
	}
}
