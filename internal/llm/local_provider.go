package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ragcore/internal/config"
	"ragcore/internal/observability"
	"ragcore/internal/ragerr"
)

// LocalProvider talks to a separately running sidecar model server (e.g. llama.cpp,
// mlx_lm.server) over its completions endpoint, per spec §4.2 provider B.
// It is kept separate from HTTPProvider because self-hosted servers diverge
// from the OpenAI SSE chunk schema often enough that a generic line reader is
// more reliable than the SDK's streaming parser (same tradeoff the teacher
// makes with its SSE fallback for self-hosted backends).
type LocalProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewLocalProvider(cfg config.LLMProviderConfig, httpClient *http.Client) *LocalProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &LocalProvider{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: httpClient,
	}
}

func (p *LocalProvider) Name() string { return "local" }

type localCompletionReq struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	Stream      bool    `json:"stream"`
}

type localCompletionResp struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

type localStreamChunk struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

func (p *LocalProvider) Ping(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return ragerr.Wrap("LocalProvider.Ping", ragerr.Internal, err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return ragerr.Wrap("LocalProvider.Ping", ragerr.Unavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return ragerr.New("LocalProvider.Ping", ragerr.Unavailable)
	}
	return nil
}

func (p *LocalProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	log := observability.LoggerWithTrace(ctx)
	body, _ := json.Marshal(localCompletionReq{
		Model:       firstNonEmpty(opts.Model, p.model),
		Prompt:      prompt,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      false,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return "", ragerr.Wrap("LocalProvider.Generate", ragerr.Internal, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("duration", dur).Msg("llm_local_generate_error")
		if ctx.Err() != nil {
			return "", ragerr.Wrap("LocalProvider.Generate", ragerr.Timeout, err)
		}
		return "", ragerr.Wrap("LocalProvider.Generate", ragerr.Unavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return "", ragerr.Wrap("LocalProvider.Generate", ragerr.Unavailable, fmt.Errorf("status %s: %s", resp.Status, b))
	}
	var out localCompletionResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", ragerr.Wrap("LocalProvider.Generate", ragerr.Internal, err)
	}
	if len(out.Choices) == 0 {
		return "", ragerr.New("LocalProvider.Generate", ragerr.Internal)
	}
	log.Debug().Dur("duration", dur).Msg("llm_local_generate_ok")
	return out.Choices[0].Text, nil
}

// GenerateStreaming reads newline-delimited "data: {...}" SSE chunks directly
// rather than via an SDK parser, matching the teacher's SSE-fallback
// treatment of self-hosted backends.
func (p *LocalProvider) GenerateStreaming(ctx context.Context, prompt string, opts GenerateOptions, h StreamHandler) error {
	log := observability.LoggerWithTrace(ctx)
	body, _ := json.Marshal(localCompletionReq{
		Model:       firstNonEmpty(opts.Model, p.model),
		Prompt:      prompt,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      true,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return ragerr.Wrap("LocalProvider.GenerateStreaming", ragerr.Internal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return ragerr.Wrap("LocalProvider.GenerateStreaming", ragerr.Unavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return ragerr.Wrap("LocalProvider.GenerateStreaming", ragerr.Unavailable, fmt.Errorf("status %s: %s", resp.Status, b))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}
		var chunk localStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Text != "" && h != nil {
			h.OnToken(chunk.Choices[0].Text)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("llm_local_stream_error")
		return ragerr.Wrap("LocalProvider.GenerateStreaming", ragerr.Unavailable, err)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
