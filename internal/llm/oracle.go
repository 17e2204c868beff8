// Package llm defines the opaque LLM oracle boundary (§1: "the LLM vendor
// is treated as an opaque text/JSON oracle, out of scope for interface
// specifics"). Open Question #1 decision: included but generic — no
// vendor SDK is wired, only a thin interface with a deterministic local
// stub so task handlers can depend on one without pulling in a concrete
// provider.
package llm

import (
	"context"
	"fmt"
)

// Oracle answers free-text prompts with free-text completions.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// StubOracle is a deterministic, offline Oracle used when no vendor SDK
// is configured. It never makes a network call.
type StubOracle struct{}

// NewStub constructs a StubOracle.
func NewStub() *StubOracle { return &StubOracle{} }

// Complete returns a canned acknowledgement embedding the prompt length,
// deterministic so tests and demos never depend on an external vendor.
func (StubOracle) Complete(_ context.Context, prompt string) (string, error) {
	return fmt.Sprintf("analysis unavailable from local oracle (prompt length %d)", len(prompt)), nil
}
