package llm

import (
	"context"
	"net/http"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"ragcore/internal/config"
	"ragcore/internal/observability"
	"ragcore/internal/ragerr"
)

// HTTPProvider talks to an OpenAI-compatible completion endpoint (cloud or a
// locally-served model with an OpenAI-shaped API), per spec §4.2 provider A.
type HTTPProvider struct {
	sdk   sdk.Client
	model string
	name  string
}

// NewHTTPProvider builds a Provider against cfg.BaseURL/cfg.Model, name is
// used for logging/metrics so the primary and secondary providers are
// distinguishable even when both are HTTP-backed.
func NewHTTPProvider(cfg config.LLMProviderConfig, httpClient *http.Client) *HTTPProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if len(cfg.ExtraHeaders) > 0 {
		httpClient = observability.WithHeaders(httpClient, cfg.ExtraHeaders)
	}
	opts := []option.RequestOption{option.WithHTTPClient(httpClient)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	name := cfg.Name
	if name == "" {
		name = "http"
	}
	return &HTTPProvider{sdk: sdk.NewClient(opts...), model: cfg.Model, name: name}
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) Ping(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := p.Generate(cctx, "ping", GenerateOptions{Model: p.model, MaxTokens: 1})
	if err != nil {
		return ragerr.Wrap("HTTPProvider.Ping", ragerr.Unavailable, err)
	}
	return nil
}

func (p *HTTPProvider) params(prompt string, opts GenerateOptions) sdk.ChatCompletionNewParams {
	model := opts.Model
	if model == "" {
		model = p.model
	}
	params := sdk.ChatCompletionNewParams{
		Model: sdk.ChatModel(model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.UserMessage(prompt),
		},
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = sdk.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = sdk.Float(float64(opts.Temperature))
	}
	return params
}

func (p *HTTPProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	log := observability.LoggerWithTrace(ctx)
	start := time.Now()
	comp, err := p.sdk.Chat.Completions.New(ctx, p.params(prompt, opts))
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("provider", p.name).Dur("duration", dur).Msg("llm_generate_error")
		if ctx.Err() != nil {
			return "", ragerr.Wrap("HTTPProvider.Generate", ragerr.Timeout, err)
		}
		return "", ragerr.Wrap("HTTPProvider.Generate", ragerr.Unavailable, err)
	}
	if len(comp.Choices) == 0 {
		return "", ragerr.New("HTTPProvider.Generate", ragerr.Internal)
	}
	log.Debug().Str("provider", p.name).Dur("duration", dur).
		Int64("prompt_tokens", comp.Usage.PromptTokens).
		Int64("completion_tokens", comp.Usage.CompletionTokens).
		Msg("llm_generate_ok")
	return comp.Choices[0].Message.Content, nil
}

// GenerateStreaming reads SSE chunks as the SDK's streaming iterator yields
// them, invoking h.OnToken for each non-empty delta (spec §4.2 streaming).
func (p *HTTPProvider) GenerateStreaming(ctx context.Context, prompt string, opts GenerateOptions, h StreamHandler) error {
	log := observability.LoggerWithTrace(ctx)
	params := p.params(prompt, opts)
	start := time.Now()
	stream := p.sdk.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta != "" && h != nil {
			h.OnToken(delta)
		}
	}
	if err := stream.Err(); err != nil {
		log.Error().Err(err).Str("provider", p.name).Dur("duration", time.Since(start)).Msg("llm_stream_error")
		if ctx.Err() != nil {
			return ragerr.Wrap("HTTPProvider.GenerateStreaming", ragerr.Timeout, err)
		}
		return ragerr.Wrap("HTTPProvider.GenerateStreaming", ragerr.Unavailable, err)
	}
	return nil
}
