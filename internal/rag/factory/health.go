package factory

import (
	"context"
	"time"

	"ragcore/internal/observability"
	"ragcore/internal/rag/domain"
)

// OverallStatus aggregates every owned component's domain.ServiceStatus into
// one signal (spec §4.8). It is a derived, factory-only concept — no single
// component ever reports it about itself.
type OverallStatus string

const (
	OverallHealthy   OverallStatus = "HEALTHY"
	OverallDegraded  OverallStatus = "DEGRADED"
	OverallUnhealthy OverallStatus = "UNHEALTHY"
)

// probeTimeout bounds a single component health probe so one hung dependency
// can't stall the whole sweep.
const probeTimeout = 5 * time.Second

// runHealthCheck invokes every registered probe once, updates each
// component's domain.ServiceInfo, and triggers a restart for any component
// whose consecutive-failure count reaches AlertThreshold when autoRecovery
// is enabled (spec §4.8).
func (f *Factory) runHealthCheck(ctx context.Context) {
	log := observability.LoggerWithTrace(ctx)

	for _, name := range f.order {
		f.mu.RLock()
		comp := f.components[name]
		f.mu.RUnlock()
		if comp.probe == nil {
			continue
		}

		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := comp.probe(pctx)
		cancel()

		f.mu.Lock()
		info := f.services[name]
		info.LastCheck = time.Now()
		if err != nil {
			info.Status = domain.StatusUnhealthy
			info.ErrorCount++
			f.failures[name]++
		} else {
			info.Status = domain.StatusHealthy
			f.failures[name] = 0
		}
		f.services[name] = info
		consecutive := f.failures[name]
		f.mu.Unlock()

		if err != nil {
			log.Warn().Str("service", name).Int("consecutiveFailures", consecutive).Err(err).Msg("health_probe_failed")
			f.metrics.IncCounter("health_probe_failed_total", map[string]string{"service": name})
			f.recordAlert(domain.PerformanceAlert{
				Type:      "health_check_failed",
				Message:   name + " failed its health probe",
				Severity:  domain.SeverityMedium,
				Timestamp: time.Now(),
				Metrics:   map[string]any{"service": name, "consecutiveFailures": consecutive, "error": err.Error()},
			})
		}

		if err != nil && consecutive >= f.alertThreshold() && f.cfg.Health.AutoRecovery {
			f.restart(ctx, name)
		}
	}
}

// restart disposes and re-initializes exactly the named component (spec
// §4.8); components with no registered restarter are left alone beyond the
// alert already logged by runHealthCheck.
func (f *Factory) restart(ctx context.Context, name string) {
	log := observability.LoggerWithTrace(ctx)

	f.mu.RLock()
	comp := f.components[name]
	f.mu.RUnlock()
	if comp.restart == nil {
		return
	}

	log.Warn().Str("service", name).Msg("restarting_service")
	err := comp.restart(ctx)
	f.metrics.IncCounter("service_restart_total", map[string]string{"service": name})

	f.mu.Lock()
	info := f.services[name]
	if err != nil {
		info.Status = domain.StatusError
	} else {
		info.Status = domain.StatusHealthy
		f.failures[name] = 0
	}
	f.services[name] = info
	f.mu.Unlock()

	sev := domain.SeverityHigh
	msg := name + " restarted successfully"
	if err != nil {
		sev = domain.SeverityCritical
		msg = name + " restart failed"
	}
	f.recordAlert(domain.PerformanceAlert{
		Type:      "service_restart",
		Message:   msg,
		Severity:  sev,
		Timestamp: time.Now(),
		Metrics:   map[string]any{"service": name},
	})
}

func (f *Factory) alertThreshold() int {
	if f.cfg.Health.AlertThreshold <= 0 {
		return defaultAlertThreshold
	}
	return f.cfg.Health.AlertThreshold
}

// Services returns a snapshot of every component's current health record.
func (f *Factory) Services() map[string]domain.ServiceInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]domain.ServiceInfo, len(f.services))
	for k, v := range f.services {
		out[k] = v
	}
	return out
}

// Overall computes the aggregate status per spec §4.8: HEALTHY iff every
// component is HEALTHY; else DEGRADED if any component is UNHEALTHY; else
// UNHEALTHY (e.g. everything is in ERROR/INITIALIZING with nothing actively
// unhealthy to recover).
func (f *Factory) Overall() OverallStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()

	allHealthy := len(f.services) > 0
	anyUnhealthy := false
	for _, info := range f.services {
		if info.Status != domain.StatusHealthy {
			allHealthy = false
		}
		if info.Status == domain.StatusUnhealthy {
			anyUnhealthy = true
		}
	}
	switch {
	case allHealthy:
		return OverallHealthy
	case anyUnhealthy:
		return OverallDegraded
	default:
		return OverallUnhealthy
	}
}

// RunHealthMonitor runs the periodic health sweep (spec §4.8, default every
// 30s) until ctx is cancelled or Stop is called.
func (f *Factory) RunHealthMonitor(ctx context.Context) {
	interval := defaultHealthInterval
	if f.cfg.Health.IntervalSeconds > 0 {
		interval = time.Duration(f.cfg.Health.IntervalSeconds) * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		case <-ticker.C:
			f.runHealthCheck(ctx)
		}
	}
}
