// Package llm streams text completions from hosted language-model providers.
package llm

import (
	"context"
	"fmt"
)

// Prompt is a single-turn request: a system instruction plus the user context.
type Prompt struct {
	System string
	User   string
}

// DeltaFunc receives each streamed text fragment. Returning an error stops the stream.
type DeltaFunc func(delta string) error

// Generator produces one completion per call. Stream invokes onDelta for every
// fragment as it arrives and returns the full accumulated text.
type Generator interface {
	Stream(ctx context.Context, p Prompt, onDelta DeltaFunc) (string, error)
	Name() string
}

// ProviderError wraps a failure reported by (or while talking to) a vendor API.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
