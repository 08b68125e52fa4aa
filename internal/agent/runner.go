// Package agent is the boundary to the AI backend. The gateway never calls
// an inference provider directly; it hands requests to a Runner and stays
// responsive while the run is in flight.
package agent

import "context"

// Request is one agent invocation.
type Request struct {
	SessionKey string `json:"sessionKey,omitempty"`
	Channel    string `json:"channel,omitempty"`
	ChatID     string `json:"chatId,omitempty"`
	Message    string `json:"message"`
}

// Result is the outcome of a completed run.
type Result struct {
	Reply string `json:"reply"`
}

// Runner executes agent actions. Implementations may take arbitrarily long;
// callers must dispatch off the hot path and honor ctx cancellation.
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, req Request) (Result, error)

func (f RunnerFunc) Run(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// EchoRunner is the built-in fallback when no AI backend is configured.
// Useful for wiring checks and tests.
type EchoRunner struct{}

func (EchoRunner) Run(ctx context.Context, req Request) (Result, error) {
	return Result{Reply: req.Message}, nil
}
