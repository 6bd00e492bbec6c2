package executor

import (
	"strconv"
	"strings"

	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/core/types"
	"github.com/opal-lang/pseudo/runtime/builtins"
)

// InputSource supplies INPUT lines interactively. prompt names the target
// variable.
type InputSource interface {
	ReadLine(prompt string) (string, error)
}

// InputFunc adapts a function to InputSource.
type InputFunc func(prompt string) (string, error)

func (f InputFunc) ReadLine(prompt string) (string, error) {
	return f(prompt)
}

// readInput pops the next queued value, falling back to the interactive
// source.
func (in *interpreter) readInput(target string) (string, error) {
	if len(in.inputs) > 0 {
		text := in.inputs[0]
		in.inputs = in.inputs[1:]
		return text, nil
	}
	if in.config.Input != nil {
		text, err := in.config.Input.ReadLine(target + "? ")
		if err == nil {
			return text, nil
		}
		in.config.Logger.Debug("input source failed", "error", err)
	}
	return "", in.errorf(diag.CodeInputExhausted, "No input available for INPUT %s", target)
}

// parseInput converts typed text to a value of type t. TypeUnknown infers
// a number when the text is numeric and a STRING otherwise.
func (in *interpreter) parseInput(text string, t types.DataType) (types.Value, error) {
	trimmed := strings.TrimSpace(text)
	switch t {
	case types.TypeUnknown:
		if v, ok := builtins.ParseNumber(trimmed); ok {
			return v, nil
		}
		return types.String(text), nil
	case types.TypeString:
		return types.String(text), nil
	case types.TypeInteger:
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return types.Integer(n), nil
		}
	case types.TypeReal:
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return types.Real(f), nil
		}
	case types.TypeBoolean:
		switch strings.ToUpper(trimmed) {
		case "TRUE":
			return types.Boolean(true), nil
		case "FALSE":
			return types.Boolean(false), nil
		}
	case types.TypeChar:
		if r := []rune(text); len(r) == 1 {
			return types.Char(r[0]), nil
		}
	}
	return nil, in.errorf(diag.CodeInvalidInput, "Cannot convert input '%s' to %s", text, t)
}
