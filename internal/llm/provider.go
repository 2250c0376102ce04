// Package llm implements C2: generating a completion from an assembled
// prompt, against one of two interchangeable provider shapes (spec §4.2).
package llm

import "context"

// GenerateOptions carries per-call generation knobs (spec §6: TEMPERATURE,
// MAX_TOKENS) plus the resolved model name.
type GenerateOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// StreamHandler receives incremental tokens as GenerateStreaming produces them.
type StreamHandler interface {
	OnToken(text string)
}

// Provider is C2's contract: a single-shot and a streaming completion call.
// Both implementations, HTTPProvider and LocalProvider, reach a separately
// running model server over HTTP; there is no in-process model loader. The
// client can fail over between them without callers caring which one
// answered (spec §4.2).
type Provider interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	GenerateStreaming(ctx context.Context, prompt string, opts GenerateOptions, h StreamHandler) error
	Ping(ctx context.Context) error
	Name() string
}
