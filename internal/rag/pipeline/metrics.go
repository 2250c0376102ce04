package pipeline

import (
	"sync"
	"time"
)

// Metrics tracks rolling totals and running averages across every Query
// call (spec §4.6). Reads and writes are mutex-protected since queries run
// concurrently.
type Metrics struct {
	mu sync.Mutex

	TotalQueries      int64
	SuccessfulQueries int64
	FailedQueries     int64

	avgResponseTime     time.Duration
	avgRetrievalTime    time.Duration
	avgGenerationTime   time.Duration
	avgContextLength    float64
	avgDocsRetrieved    float64
	avgSafetyScore      float64
	avgValidationIssues float64
}

// Snapshot is a point-in-time, lock-free copy of Metrics for callers (C8's
// health reporting).
type Snapshot struct {
	TotalQueries        int64
	SuccessfulQueries   int64
	FailedQueries       int64
	AvgResponseTime     time.Duration
	AvgRetrievalTime    time.Duration
	AvgGenerationTime   time.Duration
	AvgContextLength    float64
	AvgDocsRetrieved    float64
	AvgSafetyScore      float64
	AvgValidationIssues float64
}

func newMetrics() *Metrics { return &Metrics{} }

// recordSuccess folds one successful query's measurements into the running
// averages using Welford-style incremental averaging (avoids re-summing the
// whole history on every call).
func (m *Metrics) recordSuccess(responseTime, retrievalTime, generationTime time.Duration, contextLength, docsRetrieved int, safetyScore float32, validationIssues int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalQueries++
	m.SuccessfulQueries++
	n := float64(m.SuccessfulQueries)

	m.avgResponseTime = avgDuration(m.avgResponseTime, responseTime, n)
	m.avgRetrievalTime = avgDuration(m.avgRetrievalTime, retrievalTime, n)
	m.avgGenerationTime = avgDuration(m.avgGenerationTime, generationTime, n)
	m.avgContextLength = avgFloat(m.avgContextLength, float64(contextLength), n)
	m.avgDocsRetrieved = avgFloat(m.avgDocsRetrieved, float64(docsRetrieved), n)
	m.avgSafetyScore = avgFloat(m.avgSafetyScore, float64(safetyScore), n)
	m.avgValidationIssues = avgFloat(m.avgValidationIssues, float64(validationIssues), n)
}

func (m *Metrics) recordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalQueries++
	m.FailedQueries++
}

func (m *Metrics) snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		TotalQueries:        m.TotalQueries,
		SuccessfulQueries:   m.SuccessfulQueries,
		FailedQueries:       m.FailedQueries,
		AvgResponseTime:     m.avgResponseTime,
		AvgRetrievalTime:    m.avgRetrievalTime,
		AvgGenerationTime:   m.avgGenerationTime,
		AvgContextLength:    m.avgContextLength,
		AvgDocsRetrieved:    m.avgDocsRetrieved,
		AvgSafetyScore:      m.avgSafetyScore,
		AvgValidationIssues: m.avgValidationIssues,
	}
}

func avgFloat(prevAvg, sample, n float64) float64 {
	return prevAvg + (sample-prevAvg)/n
}

func avgDuration(prevAvg, sample time.Duration, n float64) time.Duration {
	return time.Duration(avgFloat(float64(prevAvg), float64(sample), n))
}
