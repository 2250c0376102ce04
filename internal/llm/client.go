package llm

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"ragcore/internal/config"
	"ragcore/internal/observability"
	"ragcore/internal/ragerr"
)

// Client is C2's facade: it owns the primary and secondary providers, probes
// them at startup, and fails over per-call when the active provider errors
// (spec §4.2). Callers only ever see the Provider interface.
type Client struct {
	primary   Provider
	secondary Provider

	mu     sync.RWMutex
	active Provider

	timeout time.Duration

	failovers atomic.Int64
}

// NewClient builds providers from cfg's primary/secondary shapes. Each
// provider config's Name selects the shape: "local" builds a LocalProvider,
// anything else (including "" and "http") builds an HTTPProvider.
func NewClient(cfg config.LLMConfig, httpClient *http.Client) *Client {
	c := &Client{
		primary:   buildProvider(cfg.Primary, httpClient),
		secondary: buildProvider(cfg.Secondary, httpClient),
		timeout:   cfg.Timeout,
	}
	if c.timeout <= 0 {
		c.timeout = 60 * time.Second
	}
	c.active = c.primary
	return c
}

func buildProvider(pc config.LLMProviderConfig, httpClient *http.Client) Provider {
	if pc.Name == "local" {
		return NewLocalProvider(pc, httpClient)
	}
	return NewHTTPProvider(pc, httpClient)
}

// Probe pings the primary at startup and activates it if it responds; only
// if it does not is the secondary pinged and activated. Returns an error
// only if neither is reachable.
func (c *Client) Probe(ctx context.Context) error {
	log := observability.LoggerWithTrace(ctx)
	primaryErr := c.primary.Ping(ctx)
	if primaryErr == nil {
		c.setActive(c.primary)
		return nil
	}
	log.Warn().Err(primaryErr).Str("provider", c.primary.Name()).Msg("llm_primary_unreachable")

	if c.secondary == nil {
		return ragerr.Wrap("Client.Probe", ragerr.Unavailable, primaryErr)
	}
	secondaryErr := c.secondary.Ping(ctx)
	if secondaryErr == nil {
		c.setActive(c.secondary)
		return nil
	}
	log.Warn().Err(secondaryErr).Str("provider", c.secondary.Name()).Msg("llm_secondary_unreachable")
	return ragerr.Wrap("Client.Probe", ragerr.Unavailable, secondaryErr)
}

func (c *Client) setActive(p Provider) {
	c.mu.Lock()
	c.active = p
	c.mu.Unlock()
}

func (c *Client) getActive() Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// switchProvider flips the active provider to whichever of primary/secondary
// is not p, used after p fails a call, and returns the new active provider
// (nil if there is no alternate to switch to).
func (c *Client) switchProvider(p Provider) Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	var alt Provider
	if p == c.primary {
		alt = c.secondary
	} else {
		alt = c.primary
	}
	if alt == nil {
		return nil
	}
	c.active = alt
	c.failovers.Add(1)
	return alt
}

// SwitchProvider lets a caller select the active provider by name between
// calls (spec §4.2: "switchProvider(name) — permitted only between calls").
// Unlike switchProvider's automatic mid-call failover, this never touches
// failover bookkeeping and is safe to call at any time; it only rejects a
// name that matches neither configured provider.
func (c *Client) SwitchProvider(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.primary != nil && c.primary.Name() == name:
		c.active = c.primary
	case c.secondary != nil && c.secondary.Name() == name:
		c.active = c.secondary
	default:
		return ragerr.New("Client.SwitchProvider", ragerr.InvalidInput)
	}
	return nil
}

// Failovers reports how many times a call has switched providers mid-flight,
// useful as a health signal for C8.
func (c *Client) Failovers() int64 { return c.failovers.Load() }

// ActiveProviderName reports which provider last served (or would serve) a
// call, for response metadata (spec §4.6 metadata.provider).
func (c *Client) ActiveProviderName() string { return c.getActive().Name() }

// Generate calls the active provider, failing over to the alternate on
// error and retrying once before giving up (spec §4.2 per-call failover).
func (c *Client) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	p := c.getActive()
	out, err := p.Generate(cctx, prompt, opts)
	if err == nil {
		return out, nil
	}
	if ragerr.Is(err, ragerr.Cancelled) || cctx.Err() != nil {
		return "", err
	}
	alt := c.switchProvider(p)
	if alt == nil {
		return "", err
	}
	observability.LoggerWithTrace(ctx).Warn().Str("from", p.Name()).Str("to", alt.Name()).Err(err).Msg("llm_failover")
	return alt.Generate(cctx, prompt, opts)
}

// GenerateStreaming mirrors Generate's failover, but only before any tokens
// have been emitted to the caller: a stream that has already started must
// finish with its own provider rather than silently resetting.
func (c *Client) GenerateStreaming(ctx context.Context, prompt string, opts GenerateOptions, h StreamHandler) error {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	p := c.getActive()
	started := false
	wrapped := tokenGate{h: h, started: &started}
	err := p.GenerateStreaming(cctx, prompt, opts, wrapped)
	if err == nil || started {
		return err
	}
	if ragerr.Is(err, ragerr.Cancelled) || cctx.Err() != nil {
		return err
	}
	alt := c.switchProvider(p)
	if alt == nil {
		return err
	}
	observability.LoggerWithTrace(ctx).Warn().Str("from", p.Name()).Str("to", alt.Name()).Err(err).Msg("llm_stream_failover")
	return alt.GenerateStreaming(cctx, prompt, opts, h)
}

// tokenGate records whether any token reached the caller, so
// GenerateStreaming knows whether a mid-stream error is still safe to retry
// on the alternate provider.
type tokenGate struct {
	h       StreamHandler
	started *bool
}

func (g tokenGate) OnToken(text string) {
	*g.started = true
	if g.h != nil {
		g.h.OnToken(text)
	}
}
