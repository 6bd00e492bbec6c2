package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/opal-lang/pseudo/runtime"
	"github.com/opal-lang/pseudo/runtime/executor"
)

// watchDebounce coalesces the burst of events editors emit on save.
const watchDebounce = 150 * time.Millisecond

func newWatchCommand(flags *globalFlags) *cobra.Command {
	var (
		runToo bool
		inputs []string
	)

	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Re-check a program every time it is saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), flags.debug)
			w := &watcher{
				path:     path,
				runToo:   runToo,
				config:   executor.Config{Inputs: inputs, Logger: logger},
				engine:   runtime.NewEngine(runtime.WithEngineLogger(logger)),
				out:      cmd.OutOrStdout(),
				useColor: ShouldUseColor(flags.noColor),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return w.watch(ctx)
		},
	}
	cmd.Flags().BoolVar(&runToo, "run", false, "Also run the program when it is valid")
	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "Value for the next INPUT statement (repeatable)")
	return cmd
}

type watcher struct {
	path     string
	runToo   bool
	config   executor.Config
	engine   *runtime.Engine
	out      io.Writer
	useColor bool
}

// watch checks the file once, then again after every change until ctx
// is done. The directory is watched because editors often replace the
// file rather than write to it.
func (w *watcher) watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.check(ctx)

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			debounce = time.After(watchDebounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			_, _ = fmt.Fprintf(w.out, "%s %v\n", Colorize("watch error:", ColorRed, w.useColor), err)
		case <-debounce:
			debounce = nil
			w.check(ctx)
		}
	}
}

// check validates the file and optionally runs it, reporting to w.out.
func (w *watcher) check(ctx context.Context) {
	stamp := Colorize(time.Now().Format("15:04:05"), ColorGray, w.useColor)
	data, err := os.ReadFile(w.path)
	if err != nil {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", stamp, Colorize(err.Error(), ColorRed, w.useColor))
		return
	}
	source := string(data)

	res := w.engine.Validate(source)
	if !res.IsValid {
		_, _ = fmt.Fprintf(w.out, "%s %s: %d error(s)\n", stamp, filepath.Base(w.path), len(res.Errors))
		formatDiagnostics(w.out, source, res.Errors, w.useColor)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%s %s %s (%d warning(s))\n", stamp, Colorize("OK", ColorGreen, w.useColor),
		filepath.Base(w.path), len(res.Warnings))
	if !w.runToo {
		return
	}

	config := w.config
	config.OnEvent = func(e executor.Event) { printEvent(w.out, w.out, e, w.useColor) }
	if _, err := w.engine.Execute(ctx, source, config); err != nil {
		FormatError(w.out, err, w.useColor)
	}
}
