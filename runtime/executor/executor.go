// Package executor runs a validated program by walking its syntax tree.
// Each Execute call owns its environment chain, so one parsed program may
// run concurrently on many goroutines.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/opal-lang/pseudo/core/ast"
	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/core/invariant"
	"github.com/opal-lang/pseudo/runtime/builtins"
)

// ErrInternal wraps faults in the interpreter itself. They are never
// reported as program errors.
var ErrInternal = errors.New("internal interpreter error")

// Defaults applied by Config.normalize.
const (
	DefaultStepLimit        = 1_000_000
	DefaultTimeout          = 5 * time.Second
	DefaultMaxCallDepth     = 512
	DefaultMaxOutputEvents  = 10_000
	DefaultMaxArrayElements = 1_000_000

	// timeoutCheckInterval is how many steps pass between clock reads.
	timeoutCheckInterval = 256
)

// Config configures one run. Zero values select the defaults above.
type Config struct {
	StepLimit        int           // Statements plus expression nodes evaluated
	Timeout          time.Duration // Wall-clock guard
	MaxCallDepth     int           // Nested routine calls
	MaxOutputEvents  int           // OUTPUT events kept; later ones are dropped
	MaxArrayElements int           // Elements in a single declared array

	Inputs     []string    // Queue consumed by INPUT
	Input      InputSource // Consulted once Inputs is exhausted; nil means none
	OutputJoin JoinMode    // Separator between OUTPUT values
	RandomSeed uint64      // Seed for RAND

	// OnEvent, when set, receives every event as it is recorded.
	OnEvent func(Event)

	Debug     DebugLevel     // Debug tracing (development only)
	Telemetry TelemetryLevel // Telemetry collection (production-safe)
	Logger    *slog.Logger   // nil discards
}

func (c Config) normalize() Config {
	if c.StepLimit <= 0 {
		c.StepLimit = DefaultStepLimit
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxCallDepth <= 0 {
		c.MaxCallDepth = DefaultMaxCallDepth
	}
	if c.MaxOutputEvents <= 0 {
		c.MaxOutputEvents = DefaultMaxOutputEvents
	}
	if c.MaxArrayElements <= 0 {
		c.MaxArrayElements = DefaultMaxArrayElements
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// DebugLevel controls debug tracing (development only)
type DebugLevel int

const (
	DebugOff      DebugLevel = iota // No debug info (default)
	DebugPaths                      // Routine entry/exit tracing
	DebugDetailed                   // Every statement
)

// TelemetryLevel controls telemetry collection (production-safe)
type TelemetryLevel int

const (
	TelemetryOff    TelemetryLevel = iota // Zero overhead (default)
	TelemetryBasic                        // Counters only
	TelemetryTiming                       // Counters + time per routine
)

// ExecutionResult is the trace of one run.
type ExecutionResult struct {
	Success         bool          `json:"success"`
	Events          []Event       `json:"events"`
	ExecutionTimeMs int64         `json:"executionTimeMs"`
	Duration        time.Duration `json:"-"`
	Steps           int           `json:"steps"`
	// Err is the runtime error that halted the run, also the last event.
	Err         *RuntimeError       `json:"-"`
	Telemetry   *ExecutionTelemetry `json:"telemetry,omitempty"`
	DebugEvents []DebugEvent        `json:"-"`
}

// Outputs returns the text of every Output event in order.
func (r *ExecutionResult) Outputs() []string {
	var out []string
	for _, e := range r.Events {
		if e.Kind == EventOutput {
			out = append(out, e.Text)
		}
	}
	return out
}

// ExecutionTelemetry holds additional execution metrics (optional, production-safe)
type ExecutionTelemetry struct {
	Statements     int             `json:"statements"`
	Calls          int             `json:"calls"`
	MaxDepth       int             `json:"maxDepth"`
	OutputEvents   int             `json:"outputEvents"`
	DroppedOutputs int             `json:"droppedOutputs"`
	RoutineTimings []RoutineTiming `json:"routineTimings,omitempty"`
}

// RoutineTiming accumulates time spent in one routine (if TelemetryTiming).
type RoutineTiming struct {
	Name     string        `json:"name"`
	Calls    int           `json:"calls"`
	Duration time.Duration `json:"duration"`
}

// DebugEvent represents a debug trace event
type DebugEvent struct {
	Timestamp time.Time
	Event     string // "enter_execute", "call", "return", "statement", etc.
	Line      int    // Source line (0 if not line-specific)
	Context   string // Additional context
}

// Execute runs prog. The program must have passed validation; statements
// that failed to parse are an internal fault. The returned error is nil
// for every program-level outcome, including runtime errors, which appear
// in the result. A non-nil error always wraps ErrInternal.
func Execute(ctx context.Context, prog *ast.Program, config Config) (result *ExecutionResult, err error) {
	// INPUT CONTRACT (preconditions)
	invariant.NotNil(ctx, "ctx")
	invariant.NotNil(prog, "program")

	config = config.normalize()
	in := newInterpreter(ctx, prog, config)

	defer func() {
		if r := recover(); r != nil {
			config.Logger.Error("interpreter fault", "panic", r, "line", in.line)
			result, err = nil, fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()

	in.recordDebugEvent("enter_execute", 0, fmt.Sprintf("statements=%d", len(prog.Body)))
	config.Logger.Debug("execute", "statements", len(prog.Body), "step_limit", config.StepLimit)

	c := in.block(prog.Body)
	switch {
	case c.err != nil:
		in.fail(c.err)
	case c.kind == completeBreak || c.kind == completeContinue:
		in.fail(in.errorf(diag.CodeLoopControlOutside, "%s used outside a loop", c.kind))
	}

	duration := time.Since(in.start)
	in.recordDebugEvent("exit_execute", 0, fmt.Sprintf("steps=%d, duration=%v", in.steps, duration))

	// OUTPUT CONTRACT (postconditions)
	invariant.Postcondition(in.outputs <= config.MaxOutputEvents, "output cap exceeded")
	invariant.Postcondition(in.runErr == nil || in.events[len(in.events)-1].Kind == EventError,
		"runtime error must be the final event")

	if in.telemetry != nil {
		in.telemetry.OutputEvents = in.outputs
		in.telemetry.RoutineTimings = in.routineTimings()
	}

	return &ExecutionResult{
		Success:         in.runErr == nil,
		Events:          in.events,
		ExecutionTimeMs: duration.Milliseconds(),
		Duration:        duration,
		Steps:           in.steps,
		Err:             in.runErr,
		Telemetry:       in.telemetry,
		DebugEvents:     in.debugEvents,
	}, nil
}

// interpreter holds the state of one run.
type interpreter struct {
	ctx    context.Context
	config Config
	start  time.Time

	global   *env
	env      *env
	routines map[string]ast.Stmt
	builtins *builtins.Context
	inputs   []string

	line    int // line of the statement being executed
	steps   int
	depth   int
	current *routineFrame

	events  []Event
	outputs int
	capped  bool
	runErr  *RuntimeError

	// Observability
	telemetry   *ExecutionTelemetry
	timings     map[string]*RoutineTiming
	debugEvents []DebugEvent
}

func newInterpreter(ctx context.Context, prog *ast.Program, config Config) *interpreter {
	in := &interpreter{
		ctx:      ctx,
		config:   config,
		start:    time.Now(),
		global:   newEnv(nil),
		routines: make(map[string]ast.Stmt),
		builtins: &builtins.Context{Rand: rand.New(rand.NewPCG(config.RandomSeed, config.RandomSeed^0x9e3779b97f4a7c15))},
		inputs:   append([]string(nil), config.Inputs...),
	}
	in.env = in.global
	if config.Telemetry != TelemetryOff {
		in.telemetry = &ExecutionTelemetry{}
	}
	if config.Telemetry == TelemetryTiming {
		in.timings = make(map[string]*RoutineTiming)
	}

	// Routines are hoisted; the first declaration of a name wins.
	for _, s := range prog.Body {
		switch r := s.(type) {
		case *ast.FunctionDecl:
			if _, ok := in.routines[r.Name]; !ok {
				in.routines[r.Name] = r
			}
		case *ast.ProcedureDecl:
			if _, ok := in.routines[r.Name]; !ok {
				in.routines[r.Name] = r
			}
		}
	}
	return in
}

// tick counts one step and enforces the step, time and cancellation limits.
func (in *interpreter) tick() error {
	in.steps++
	if in.steps > in.config.StepLimit {
		return in.errorf(diag.CodeExecutionTimeout, "Execution timed out")
	}
	if in.steps%timeoutCheckInterval == 0 && time.Since(in.start) > in.config.Timeout {
		return in.errorf(diag.CodeExecutionTimeout, "Execution timed out")
	}
	return nil
}

// checkCancelled polls ctx at statement boundaries.
func (in *interpreter) checkCancelled() error {
	if in.ctx.Err() != nil {
		return in.errorf(diag.CodeExecutionCanceled, "Execution cancelled")
	}
	return nil
}

func (in *interpreter) emit(e Event) {
	if e.Kind == EventOutput {
		if in.outputs >= in.config.MaxOutputEvents {
			if in.telemetry != nil {
				in.telemetry.DroppedOutputs++
			}
			if in.capped {
				return
			}
			in.capped = true
			e = Event{
				Kind: EventSystem,
				Text: fmt.Sprintf("Output limit of %d events reached; further output was dropped", in.config.MaxOutputEvents),
				Line: e.Line,
			}
		} else {
			in.outputs++
		}
	}
	in.events = append(in.events, e)
	if in.config.OnEvent != nil {
		in.config.OnEvent(e)
	}
}

// fail records the run's single runtime error as the final event.
func (in *interpreter) fail(err error) {
	var rt *RuntimeError
	if !errors.As(err, &rt) {
		panic(err)
	}
	in.runErr = rt
	in.recordDebugEvent("runtime_error", rt.Line, rt.Message)
	in.config.Logger.Debug("runtime error", "line", rt.Line, "code", string(rt.Code), "message", rt.Message)
	in.emit(Event{Kind: EventError, Text: rt.Error(), Line: rt.Line})
}

func (in *interpreter) routineTimings() []RoutineTiming {
	if in.timings == nil {
		return nil
	}
	out := make([]RoutineTiming, 0, len(in.timings))
	for _, t := range in.timings {
		out = append(out, *t)
	}
	sortTimings(out)
	return out
}

// recordDebugEvent records a debug event (only if debug enabled)
func (in *interpreter) recordDebugEvent(event string, line int, context string) {
	if in.config.Debug == DebugOff {
		return
	}

	in.debugEvents = append(in.debugEvents, DebugEvent{
		Timestamp: time.Now(),
		Event:     event,
		Line:      line,
		Context:   context,
	})
}
