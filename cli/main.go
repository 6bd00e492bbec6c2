package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	debug   bool
	noColor bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCommand(stdin)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			return exit.code
		}
		FormatError(stderr, err, ShouldUseColor(false))
		return 2
	}
	return 0
}

func newRootCommand(stdin io.Reader) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "pseudo",
		Short:         "Check and run Cambridge-style pseudocode",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)

	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging on stderr")
	root.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newValidateCommand(flags),
		newRunCommand(flags),
		newTokensCommand(flags),
		newFmtCommand(flags),
		newWatchCommand(flags),
		newReplCommand(flags),
		newVersionCommand(),
	)
	return root
}

// exitError ends the process with code after the command has already
// reported the problem.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// newLogger builds the stderr logger. PSEUDO_DEBUG enables debug level
// like --debug does.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug || os.Getenv("PSEUDO_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Remove timestamp for cleaner output
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}
