// Package sandbox runs untrusted JavaScript in an isolated goja runtime.
//
// Each Run gets a fresh runtime whose only host binding is a console object
// that records output. The code is evaluated as the body of an async
// function and the settled promise value becomes the result.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// DefaultTimeout bounds a single Run.
const DefaultTimeout = 10 * time.Second

var (
	errTimedOut  = errors.New("execution timed out")
	errCancelled = errors.New("execution cancelled")
)

// Result is the outcome of one Run. Exactly one of Value or Error is
// meaningful: Error is set when the code threw or its promise rejected.
type Result struct {
	Logs  []string
	Value any
	Error string
}

// Failed reports whether the code threw, rejected or was interrupted.
func (r Result) Failed() bool { return r.Error != "" }

// MarshalJSON encodes {logs, result} on success and {logs, error} otherwise.
func (r Result) MarshalJSON() ([]byte, error) {
	logs := r.Logs
	if logs == nil {
		logs = []string{}
	}
	if r.Failed() {
		return json.Marshal(struct {
			Logs  []string `json:"logs"`
			Error string   `json:"error"`
		}{logs, r.Error})
	}
	return json.Marshal(struct {
		Logs   []string `json:"logs"`
		Result any      `json:"result"`
	}{logs, r.Value})
}

// Runner executes code snippets.
type Runner struct {
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout sets the execution deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var scriptCloseTag = regexp.MustCompile(`(?i)</script`)

// Neutralize rewrites closing script tags so the code cannot terminate an
// enclosing script block.
func Neutralize(code string) string {
	return scriptCloseTag.ReplaceAllStringFunc(code, func(m string) string {
		return `<\/` + m[2:]
	})
}

// Run executes code and never returns an error: every failure is folded into
// Result.Error.
func (r *Runner) Run(ctx context.Context, code string) (res Result) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	vm := goja.New()
	logs := []string{}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("sandbox runtime panic", "panic", p)
			res = Result{Logs: logs, Error: fmt.Sprintf("sandbox failure: %v", p)}
		}
	}()

	if err := installConsole(vm, &logs); err != nil {
		return Result{Logs: logs, Error: err.Error()}
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				vm.Interrupt(errTimedOut)
			} else {
				vm.Interrupt(errCancelled)
			}
		case <-done:
		}
	}()

	src := "(async () => {\n" + Neutralize(code) + "\n})()"
	start := time.Now()
	v, err := vm.RunString(src)
	r.logger.Debug("sandbox run finished", "duration", time.Since(start), "error", err)
	if err != nil {
		return Result{Logs: logs, Error: errorMessage(err)}
	}

	promise, ok := v.Export().(*goja.Promise)
	if !ok {
		return Result{Logs: logs, Value: exportValue(v)}
	}
	switch promise.State() {
	case goja.PromiseStateFulfilled:
		return Result{Logs: logs, Value: exportValue(promise.Result())}
	case goja.PromiseStateRejected:
		return Result{Logs: logs, Error: thrownMessage(promise.Result())}
	default:
		return Result{Logs: logs, Error: "promise did not settle"}
	}
}

func installConsole(vm *goja.Runtime, logs *[]string) error {
	console := vm.NewObject()
	record := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = formatArg(arg)
		}
		*logs = append(*logs, strings.Join(parts, " "))
		return goja.Undefined()
	}
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, record); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

func formatArg(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	switch exported := v.Export().(type) {
	case string:
		return exported
	case map[string]any, []any:
		if b, err := json.Marshal(exported); err == nil {
			return string(b)
		}
	}
	return v.String()
}

// exportValue converts a JS value to a JSON-safe Go value.
func exportValue(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	exported := v.Export()
	if _, err := json.Marshal(exported); err != nil {
		return v.String()
	}
	return exported
}

func errorMessage(err error) string {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause.Error()
		}
		return "execution interrupted"
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return thrownMessage(exception.Value())
	}
	return err.Error()
}

// thrownMessage prefers an Error's message property and falls back to the
// value's string form.
func thrownMessage(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return msg.String()
		}
	}
	return v.String()
}
