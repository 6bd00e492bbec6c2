package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/runtime/config"
)

// CLIError represents a formatted CLI error with context
type CLIError struct {
	Type    string // "input", "config", "format", "internal"
	Message string
	Details string // Additional context
	Hint    string // How to fix it
}

// Error implements the error interface
func (e *CLIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Details != "" {
		b.WriteString("\n")
		b.WriteString(e.Details)
	}
	if e.Hint != "" {
		b.WriteString("\n")
		b.WriteString(e.Hint)
	}
	return b.String()
}

// configError wraps a run-config failure with a hint.
func configError(path string, err error) *CLIError {
	e := &CLIError{Type: "config", Message: fmt.Sprintf("Cannot use config file %s", path), Details: err.Error()}
	switch {
	case errors.Is(err, config.ErrUnsupportedVersion):
		e.Hint = fmt.Sprintf("This engine implements language %s", config.LanguageVersion)
	case errors.Is(err, config.ErrInvalidConfig):
		e.Hint = "Allowed keys: languageVersion, stepLimit, timeout, maxCallDepth, maxOutputEvents, maxArrayElements, outputJoin, randomSeed, inputs"
	}
	return e
}

// FormatError formats an error for CLI output with colors
func FormatError(w io.Writer, err error, useColor bool) {
	if err == nil {
		return
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		formatCLIError(w, cliErr, useColor)
		return
	}
	_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("Error: ", ColorRed, useColor), err.Error())
}

// formatCLIError formats CLI errors
func formatCLIError(w io.Writer, err *CLIError, useColor bool) {
	_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("Error: ", ColorRed, useColor), err.Message)

	if err.Details != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", err.Details)
	}

	if err.Hint != "" {
		_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("Hint: ", ColorYellow, useColor), err.Hint)
	}
}

// formatDiagnostics renders diagnostics with source snippets.
func formatDiagnostics(w io.Writer, source string, ds []diag.Diagnostic, useColor bool) {
	lines := diag.NewLineMap(source)
	for _, d := range ds {
		color := ColorRed
		if !d.IsError() {
			color = ColorYellow
		}
		text := lines.Render(d)
		first, rest, _ := strings.Cut(text, "\n")
		_, _ = fmt.Fprintf(w, "%s\n%s", Colorize(first, color, useColor), rest)
	}
}
