package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/opal-lang/pseudo/core/tracefmt"
	"github.com/opal-lang/pseudo/runtime"
	"github.com/opal-lang/pseudo/runtime/config"
	"github.com/opal-lang/pseudo/runtime/executor"
)

type runFlags struct {
	inputs      []string
	configPath  string
	stepLimit   int
	timeout     time.Duration
	maxDepth    int
	maxOutput   int
	join        string
	seed        uint64
	interactive bool
	format      string
	digest      bool
}

func newRunCommand(flags *globalFlags) *cobra.Command {
	rf := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Validate and execute a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), flags.debug)
			cfg, err := rf.executorConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Logger = logger

			if rf.interactive {
				line := liner.NewLiner()
				defer line.Close()
				line.SetCtrlCAborts(true)
				cfg.Input = linerInput{line}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			engine := runtime.NewEngine(runtime.WithEngineLogger(logger))
			return execute(ctx, engine, source, cfg, rf, cmd.OutOrStdout(), cmd.ErrOrStderr(), ShouldUseColor(flags.noColor))
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&rf.inputs, "input", "i", nil, "Value for the next INPUT statement (repeatable)")
	f.StringVarP(&rf.configPath, "config", "c", "", "Run-configuration file (YAML or JSON)")
	f.IntVar(&rf.stepLimit, "step-limit", executor.DefaultStepLimit, "Maximum evaluation steps")
	f.DurationVar(&rf.timeout, "timeout", executor.DefaultTimeout, "Wall-clock limit")
	f.IntVar(&rf.maxDepth, "max-depth", executor.DefaultMaxCallDepth, "Maximum routine call depth")
	f.IntVar(&rf.maxOutput, "max-output", executor.DefaultMaxOutputEvents, "Maximum OUTPUT events kept")
	f.StringVar(&rf.join, "join", "space", "Separator between OUTPUT values: space, comma or none")
	f.Uint64Var(&rf.seed, "seed", 0, "Seed for RAND")
	f.BoolVar(&rf.interactive, "interactive", false, "Prompt on the terminal once --input values run out")
	f.StringVar(&rf.format, "format", "text", "Output format: text, json or cbor")
	f.BoolVar(&rf.digest, "digest", false, "Print the trace digest to stderr")
	return cmd
}

// executorConfig layers defaults, the config file and explicit flags, in
// that order.
func (rf *runFlags) executorConfig(cmd *cobra.Command) (executor.Config, error) {
	var cfg executor.Config
	if rf.configPath != "" {
		file, err := config.Load(rf.configPath)
		if err != nil {
			return cfg, configError(rf.configPath, err)
		}
		if cfg, err = file.Apply(cfg); err != nil {
			return cfg, configError(rf.configPath, err)
		}
	}

	changed := cmd.Flags().Changed
	if changed("step-limit") {
		cfg.StepLimit = rf.stepLimit
	}
	if changed("timeout") {
		cfg.Timeout = rf.timeout
	}
	if changed("max-depth") {
		cfg.MaxCallDepth = rf.maxDepth
	}
	if changed("max-output") {
		cfg.MaxOutputEvents = rf.maxOutput
	}
	if changed("seed") {
		cfg.RandomSeed = rf.seed
	}
	if changed("join") {
		mode, err := executor.ParseJoinMode(rf.join)
		if err != nil {
			return cfg, &CLIError{Type: "input", Message: err.Error()}
		}
		cfg.OutputJoin = mode
	}
	cfg.Inputs = append(cfg.Inputs, rf.inputs...)
	return cfg, nil
}

// execute runs source and reports the trace in rf.format.
func execute(ctx context.Context, engine *runtime.Engine, source string, cfg executor.Config, rf *runFlags,
	stdout, stderr io.Writer, useColor bool,
) error {
	switch rf.format {
	case "text", "json", "cbor":
	default:
		return unknownFormat(rf.format, "text", "json", "cbor")
	}

	if rf.format == "text" {
		if v := engine.Validate(source); !v.IsValid {
			formatDiagnostics(stderr, source, v.Errors, useColor)
			return &exitError{code: 1}
		}
		cfg.OnEvent = func(e executor.Event) {
			printEvent(stdout, stderr, e, useColor)
		}
	}

	res, err := engine.Execute(ctx, source, cfg)
	if err != nil {
		return &CLIError{Type: "internal", Message: "The interpreter failed", Details: err.Error(),
			Hint: "This is a bug in pseudo, not in your program"}
	}

	trace := res.Trace(tracefmt.SourceDigest(source))
	switch rf.format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	case "cbor":
		if _, err := tracefmt.Write(stdout, trace); err != nil {
			return err
		}
	}

	if rf.digest {
		digest, err := trace.Digest()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stderr, "trace %s\n", digest)
	}
	if !res.Success {
		return &exitError{code: 1}
	}
	return nil
}

func printEvent(stdout, stderr io.Writer, e executor.Event, useColor bool) {
	switch e.Kind {
	case executor.EventOutput:
		_, _ = fmt.Fprintln(stdout, e.Text)
	case executor.EventError:
		_, _ = fmt.Fprintln(stderr, Colorize(e.Text, ColorRed, useColor))
	case executor.EventSystem:
		_, _ = fmt.Fprintln(stderr, Colorize(e.Text, ColorGray, useColor))
	}
}

// linerInput reads INPUT values from the terminal.
type linerInput struct {
	state *liner.State
}

func (l linerInput) ReadLine(prompt string) (string, error) {
	return l.state.Prompt(prompt)
}
