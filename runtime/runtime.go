// Package runtime is the entry point for checking and running pseudocode
// source. It chains the lexer, parser, validator and executor, and merges
// their diagnostics into a single result.
package runtime

import (
	"context"
	"log/slog"
	"slices"

	"github.com/opal-lang/pseudo/core/ast"
	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/core/invariant"
	"github.com/opal-lang/pseudo/runtime/executor"
	"github.com/opal-lang/pseudo/runtime/parser"
	"github.com/opal-lang/pseudo/runtime/validation"
)

// ValidationResult holds every diagnostic found before execution.
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []diag.Diagnostic `json:"errors"`
	Warnings []diag.Diagnostic `json:"warnings"`

	// Program is the parsed tree, partial when IsValid is false. It is
	// shared between callers and must not be modified.
	Program *ast.Program `json:"-"`
}

// Validate lexes, parses and validates source. Syntax errors do not stop
// semantic checking; nodes that failed to parse are skipped by it.
func Validate(source string) *ValidationResult {
	return analyze(source, nil)
}

// Execute validates source and, when it is valid, runs it. An invalid
// program is not run: the result carries one Error event per error
// diagnostic. The returned error is non-nil only for internal faults and
// wraps executor.ErrInternal.
func Execute(ctx context.Context, source string, config executor.Config) (*executor.ExecutionResult, error) {
	return run(ctx, Validate(source), config)
}

func analyze(source string, logger *slog.Logger) *ValidationResult {
	var opts []parser.ParserOpt
	if logger != nil {
		opts = append(opts, parser.WithLogger(logger))
	}
	tree := parser.Parse(source, opts...)

	var bag diag.Bag
	bag.AddAll(tree.Diagnostics())
	semantic := validation.Validate(tree.Program)
	bag.AddAll(semantic.Errors)
	bag.AddAll(semantic.Warnings)

	errs, warnings := bag.Errors(), bag.Warnings()
	diag.SortByPosition(errs)
	diag.SortByPosition(warnings)
	if errs == nil {
		errs = []diag.Diagnostic{}
	}
	if warnings == nil {
		warnings = []diag.Diagnostic{}
	}

	// OUTPUT CONTRACT
	invariant.Postcondition(len(errs) > 0 || !tree.HasErrors(), "syntax errors must make the program invalid")

	if logger != nil {
		logger.Debug("validated", "errors", len(errs), "warnings", len(warnings))
	}
	return &ValidationResult{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
		Program:  tree.Program,
	}
}

func run(ctx context.Context, v *ValidationResult, config executor.Config) (*executor.ExecutionResult, error) {
	if !v.IsValid {
		events := make([]executor.Event, len(v.Errors))
		for i, d := range v.Errors {
			events[i] = executor.Event{Kind: executor.EventError, Text: d.Message, Line: d.Line}
		}
		if config.OnEvent != nil {
			for _, e := range events {
				config.OnEvent(e)
			}
		}
		return &executor.ExecutionResult{Success: false, Events: events}, nil
	}
	return executor.Execute(ctx, v.Program, config)
}

// clone copies the diagnostic slices so a cached result can be handed out
// without callers sharing them.
func (v *ValidationResult) clone() *ValidationResult {
	out := *v
	out.Errors = slices.Clone(v.Errors)
	out.Warnings = slices.Clone(v.Warnings)
	return &out
}
