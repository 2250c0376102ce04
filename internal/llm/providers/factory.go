// Package providers wires an llm.Client from configuration, keeping the
// construction details (HTTP client reuse, provider shape selection) out of
// C8's factory.
package providers

import (
	"ragcore/internal/config"
	"ragcore/internal/llm"
	"ragcore/internal/observability"
)

// Build constructs C2's Client from cfg.LLM, sharing one observability-wrapped
// HTTP client across both providers.
func Build(cfg config.LLMConfig) *llm.Client {
	httpClient := observability.NewHTTPClient(nil)
	return llm.NewClient(cfg, httpClient)
}
