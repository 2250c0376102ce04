// Package factory implements C8: it owns the process-lifetime singletons of
// C1-C7 and C9, brings them up in a fixed, fault-isolated order, and runs
// the periodic health monitor and restart logic that watches them
// afterward. Grounded on the teacher's mcpclient.MCPServerPool, which plays
// the same "owns a set of long-lived handles behind one mutex, exposes
// lazily-refreshed accessors" role for MCP sessions.
package factory

import (
	"context"
	"os"
	"sync"
	"time"

	"ragcore/internal/cache"
	"ragcore/internal/config"
	"ragcore/internal/llm"
	"ragcore/internal/observability"
	"ragcore/internal/persistence/databases"
	"ragcore/internal/rag/domain"
	"ragcore/internal/rag/embedder"
	"ragcore/internal/rag/ingest"
	"ragcore/internal/rag/obs"
	"ragcore/internal/rag/pipeline"
	"ragcore/internal/rag/streamreg"
	"ragcore/internal/ragerr"
)

// errInvalidChunking marks C3 unhealthy when its configured chunk size is
// non-positive — the one precondition docproc/chunker cannot recover from.
var errInvalidChunking = ragerr.New("factory.initDocProcessing", ragerr.InvalidInput)

const (
	defaultHealthInterval = 30 * time.Second
	defaultAlertThreshold = 3
	defaultInitTimeout    = 15 * time.Second
)

// component bundles one singleton's health probe and (when the component
// holds a genuinely disposable resource) its restart hook.
type component struct {
	probe   func(ctx context.Context) error
	restart func(ctx context.Context) error
}

// Factory owns every component singleton for the life of the process.
// Components reach each other only through the interfaces Factory hands
// out at construction; nothing reaches back into Factory itself (spec §3:
// "No component may mutate another's owned state directly").
type Factory struct {
	cfg config.Config

	Embedder    embedder.Embedder
	LLM         *llm.Client
	Vectors     databases.VectorStore
	Queue       *databases.OpQueue
	Pipeline    *pipeline.Pipeline
	Coordinator *ingest.Coordinator
	Streams     *streamreg.Registry

	vectorProxy  *vectorStoreProxy
	alerts       *databases.Monitor
	storeMonitor *databases.Monitor
	metrics      obs.Metrics

	mu         sync.RWMutex
	services   map[string]domain.ServiceInfo
	failures   map[string]int
	components map[string]component
	order      []string

	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New brings up every component in spec order (C1, C2, C3, C4, C6, C7, C9).
// A component's init failure is isolated: it is recorded with StatusError
// and the remaining components still come up, per §4.8. New has no error
// return: every failure is reported through that component's ServiceInfo.
func New(ctx context.Context, cfg config.Config) *Factory {
	lifeCtx, lifeCancel := context.WithCancel(context.Background())
	f := &Factory{
		cfg:        cfg,
		services:   make(map[string]domain.ServiceInfo),
		failures:   make(map[string]int),
		components: make(map[string]component),
		alerts:     databases.NewMonitor(databases.Thresholds{}),
		metrics:    obs.NewOtelMetrics(),
		lifeCtx:    lifeCtx,
		lifeCancel: lifeCancel,
		stopCh:     make(chan struct{}),
	}

	f.initEmbedder(ctx, cfg)
	f.initLLM(ctx, cfg)
	f.initDocProcessing(ctx, cfg)
	f.initVectorStore(ctx, cfg)
	f.initPipeline(ctx)
	f.initCoordinator(ctx, cfg)
	f.initStreams(ctx, cfg)

	return f
}

// timeboxed runs init within defaultInitTimeout and records its outcome as
// a ServiceInfo, matching §4.8's "each init is time-boxed" rule.
func (f *Factory) timeboxed(ctx context.Context, name string, init func(ctx context.Context) error) {
	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, defaultInitTimeout)
	defer cancel()

	err := init(cctx)
	elapsed := time.Since(start).Seconds()
	f.metrics.ObserveHistogram("service_init_seconds", elapsed, map[string]string{"service": name})

	info := domain.ServiceInfo{
		Name:                  name,
		LastCheck:             time.Now(),
		InitializationSeconds: elapsed,
	}
	if err != nil {
		info.Status = domain.StatusError
		info.HealthData = map[string]any{"initError": err.Error()}
		observability.LoggerWithTrace(ctx).Error().Str("service", name).Err(err).Msg("service_init_failed")
		f.metrics.IncCounter("service_init_total", map[string]string{"service": name, "status": "error"})
	} else {
		info.Status = domain.StatusHealthy
		f.metrics.IncCounter("service_init_total", map[string]string{"service": name, "status": "ok"})
	}

	f.mu.Lock()
	f.services[name] = info
	f.order = append(f.order, name)
	f.mu.Unlock()
}

// registerProbe attaches a health probe (and optionally a restart hook) to
// an already-initialized component name.
func (f *Factory) registerProbe(name string, probe func(ctx context.Context) error, restart func(ctx context.Context) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.components[name] = component{probe: probe, restart: restart}
}

func (f *Factory) initEmbedder(ctx context.Context, cfg config.Config) {
	f.timeboxed(ctx, "embedder", func(ctx context.Context) error {
		var embCache embedder.Cache
		if cfg.Embedding.CacheTTL > 0 && cfg.Embedding.RedisAddr != "" {
			rc, err := cache.NewRedisCache(cfg.Embedding.RedisAddr, cfg.Embedding.RedisPassword, cfg.Embedding.RedisDB)
			if err != nil {
				observability.LoggerWithTrace(ctx).Warn().Err(err).Msg("embedding_cache_unavailable")
			} else {
				embCache = rc
			}
		}
		if cfg.Embedding.BaseURL != "" {
			f.Embedder = embedder.NewHTTPEmbedder(cfg.Embedding, embCache)
		} else {
			dim := cfg.Embedding.Dimension
			if dim <= 0 {
				dim = 384
			}
			f.Embedder = embedder.NewDeterministicEmbedder(dim)
		}
		return f.Embedder.Ping(ctx)
	})
	f.registerProbe("embedder", func(ctx context.Context) error { return f.Embedder.Ping(ctx) }, nil)
}

func (f *Factory) initLLM(ctx context.Context, cfg config.Config) {
	f.timeboxed(ctx, "llm", func(ctx context.Context) error {
		httpClient := observability.NewHTTPClient(nil)
		f.LLM = llm.NewClient(cfg.LLM, httpClient)
		return f.LLM.Probe(ctx)
	})
	f.registerProbe("llm", func(ctx context.Context) error { return f.LLM.Probe(ctx) },
		func(ctx context.Context) error { return f.LLM.Probe(ctx) })
}

// initDocProcessing has no long-lived singleton to build: C3 is a pair of
// pure functions (docproc.Process, chunker.Assemble). Init here only
// validates the chunking knobs are usable, recording ServiceInfo so C3
// still shows up in health output per §4.8.
func (f *Factory) initDocProcessing(ctx context.Context, cfg config.Config) {
	f.timeboxed(ctx, "docproc", func(ctx context.Context) error {
		if cfg.Chunking.MaxChunkChars <= 0 {
			return errInvalidChunking
		}
		return nil
	})
	f.registerProbe("docproc", func(ctx context.Context) error {
		if cfg.Chunking.MaxChunkChars <= 0 {
			return errInvalidChunking
		}
		return nil
	}, nil)
}

func (f *Factory) initVectorStore(ctx context.Context, cfg config.Config) {
	f.timeboxed(ctx, "vectorstore", func(ctx context.Context) error {
		store, err := databases.NewVectorStore(ctx, cfg.VectorStore)
		if err != nil {
			return err
		}
		f.vectorProxy = newVectorStoreProxy(store)
		f.Vectors = f.vectorProxy

		thresholds := databases.Thresholds{
			SlowOpMs:    cfg.VectorStore.SlowOpMs,
			MemHighMb:   cfg.VectorStore.MemHighMb,
			QueueHighN:  cfg.VectorStore.QueueHighN,
			ErrRateHigh: cfg.VectorStore.ErrRateHigh,
		}
		monitor := databases.NewMonitor(thresholds)
		monitor.AddAlertCallback(f.recordAlert)
		f.Queue = databases.NewOpQueue(f.vectorProxy, monitor, cfg.VectorStore.MaxQueueSize)
		f.Queue.Start(f.lifeCtx)
		// A memory-high alert auto-enqueues a cleanup op (spec §4.4.4) rather
		// than running compaction inline on the sampling goroutine.
		queue := f.Queue
		monitor.SetCleanupTrigger(func() {
			queue.Enqueue(&databases.Operation{Kind: databases.OpCollectionCleanup, Priority: databases.PriorityLow})
		})
		f.storeMonitor = monitor
		go f.runStoreMonitor(f.lifeCtx)
		return nil
	})
	f.registerProbe("vectorstore",
		func(ctx context.Context) error { _, err := f.vectorProxy.Stats(ctx); return err },
		func(ctx context.Context) error {
			store, err := databases.NewVectorStore(ctx, cfg.VectorStore)
			if err != nil {
				return err
			}
			return f.vectorProxy.swap(store)
		})
}

func (f *Factory) initPipeline(ctx context.Context) {
	f.timeboxed(ctx, "pipeline", func(ctx context.Context) error {
		f.Pipeline = pipeline.New(f.Embedder, f.Vectors, f.LLM)
		return nil
	})
	// C6 holds no resource of its own; its health is a function of C1/C2/C4,
	// each already probed independently, so its probe is a cheap liveness
	// check.
	f.registerProbe("pipeline", func(ctx context.Context) error { return nil }, nil)
}

func (f *Factory) initCoordinator(ctx context.Context, cfg config.Config) {
	f.timeboxed(ctx, "coordinator", func(ctx context.Context) error {
		for _, dir := range []string{cfg.Paths.UploadDir, cfg.Paths.ProcessedDir, cfg.Paths.CacheDir} {
			if dir == "" {
				continue
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		f.Coordinator = ingest.New(f.Embedder, f.Vectors, cfg.Chunking, cfg.Paths, cfg.MaxConcurrentIngests)
		// Sweep expired upload-progress records hourly (§3 retention).
		coord := f.Coordinator
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-f.lifeCtx.Done():
					return
				case <-ticker.C:
					coord.RunGC()
				}
			}
		}()
		return nil
	})
	f.registerProbe("coordinator", func(ctx context.Context) error { return nil }, nil)
}

func (f *Factory) initStreams(ctx context.Context, cfg config.Config) {
	f.timeboxed(ctx, "streams", func(ctx context.Context) error {
		idle := time.Duration(cfg.Streaming.IdleTimeoutMinutes) * time.Minute
		f.Streams = streamreg.New(idle)
		go f.Streams.RunSweeper(f.lifeCtx)
		return nil
	})
	f.registerProbe("streams", func(ctx context.Context) error { return nil }, nil)
}

// runStoreMonitor samples heap usage and queue depth every 30s (spec
// §4.4.4/§4.8), feeding C4's Monitor so its memory-high and queue-depth-high
// alerts actually fire and its rolling memory history stays current.
func (f *Factory) runStoreMonitor(ctx context.Context) {
	ticker := time.NewTicker(defaultHealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.storeMonitor.SampleMemory()
			if f.Queue != nil {
				f.storeMonitor.CheckQueueDepth(f.Queue.Len())
			}
		}
	}
}

// StoreMetrics exposes C4's per-operation timing/error snapshot (spec
// §4.4.4's p50/p90/p95/p99 histograms) for health/metrics endpoints.
func (f *Factory) StoreMetrics() map[string]databases.OperationMetrics {
	if f.storeMonitor == nil {
		return nil
	}
	return f.storeMonitor.OperationStats()
}

// recordAlert is the sink every internal alert source (C4's Monitor, C8's
// own health checks) funnels into; it fans out to Factory's subscribers.
func (f *Factory) recordAlert(a domain.PerformanceAlert) {
	f.alerts.RecordAlert(a)
}

// AddAlertCallback subscribes cb to every future alert (spec §4.8's alert
// bus). A panicking subscriber never disrupts the monitor or other
// subscribers (delegated to databases.Monitor's panic-isolated fan-out).
func (f *Factory) AddAlertCallback(cb func(domain.PerformanceAlert)) {
	f.alerts.AddAlertCallback(cb)
}

// Alerts returns the retained alert ring buffer (most-recent last).
func (f *Factory) Alerts() []domain.PerformanceAlert {
	return f.alerts.Alerts()
}

// Stop terminates the health monitor loop and every background task the
// factory started (op queue worker, stream sweeper), and releases the
// vector store connection.
func (f *Factory) Stop() {
	f.stopOnce.Do(func() { close(f.stopCh) })
	f.lifeCancel()
	if f.Streams != nil {
		f.Streams.Stop()
	}
	if f.Queue != nil {
		f.Queue.Close()
	}
	if f.Vectors != nil {
		_ = f.Vectors.Close()
	}
}
