package main

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/runtime"
)

func newValidateCommand(flags *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Report lexical, syntax and semantic problems without running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			engine := runtime.NewEngine(runtime.WithEngineLogger(newLogger(cmd.ErrOrStderr(), flags.debug)))
			res := engine.Validate(source)

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			case "text":
				useColor := ShouldUseColor(flags.noColor)
				all := slices.Concat(res.Errors, res.Warnings)
				diag.SortByPosition(all)
				formatDiagnostics(out, source, all, useColor)
				if res.IsValid {
					_, _ = fmt.Fprintf(out, "%s %s (%d warning(s))\n", Colorize("OK", ColorGreen, useColor), args[0], len(res.Warnings))
				} else {
					_, _ = fmt.Fprintf(out, "%s: %d error(s), %d warning(s)\n", args[0], len(res.Errors), len(res.Warnings))
				}
			default:
				return unknownFormat(format, "text", "json")
			}

			if !res.IsValid {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func unknownFormat(format string, allowed ...string) *CLIError {
	return &CLIError{
		Type:    "format",
		Message: fmt.Sprintf("Unknown output format %q", format),
		Hint:    fmt.Sprintf("Use one of: %v", allowed),
	}
}
