package databases

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/rag/domain"
)

func newTestMemoryStore(t *testing.T) VectorStore {
	t.Helper()
	store, err := NewMemoryVector("test-collection", 4)
	require.NoError(t, err)
	return store
}

func TestOpQueueProcessesBatchInsert(t *testing.T) {
	store := newTestMemoryStore(t)
	q := NewOpQueue(store, nil, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	var callbackErr error
	ok := q.Enqueue(&Operation{
		Kind: OpBatchInsert,
		Chunks: []domain.Chunk{
			{ID: "c1", Text: "hello", Vector: []float32{1, 0, 0, 0}, SourceFile: "a.txt"},
		},
		Callback: func(err error) {
			callbackErr = err
			wg.Done()
		},
	})
	require.True(t, ok)
	wg.Wait()
	require.NoError(t, callbackErr)

	got, found, err := store.Get(context.Background(), "c1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "hello", got.Text)
}

func TestOpQueueRejectsWhenFull(t *testing.T) {
	store := newTestMemoryStore(t)
	monitor := NewMonitor(Thresholds{})
	q := NewOpQueue(store, monitor, 1)
	q.mu.Lock()
	q.heap = append(q.heap, &Operation{Kind: OpBatchInsert})
	q.mu.Unlock()

	ok := q.Enqueue(&Operation{Kind: OpBatchInsert})
	assert.False(t, ok)

	alerts := monitor.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "queue_full", alerts[0].Type)
}

func TestOpQueueOrdersByPriorityThenTime(t *testing.T) {
	store := newTestMemoryStore(t)
	q := NewOpQueue(store, nil, 10)

	var order []string
	var mu sync.Mutex
	record := func(name string) func(error) {
		return func(error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.Enqueue(&Operation{Kind: OpCollectionCleanup, Priority: PriorityLow, Callback: record("low")})
	q.Enqueue(&Operation{Kind: OpCollectionCleanup, Priority: PriorityHigh, Callback: record("high")})
	q.Enqueue(&Operation{Kind: OpCollectionCleanup, Priority: PriorityNormal, Callback: record("normal")})

	q.Start(ctx)
	defer q.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"high", "normal", "low"}, order)
}

func TestMonitorRecordAlertCapsRingBuffer(t *testing.T) {
	m := NewMonitor(Thresholds{})
	for i := 0; i < domain.MaxRetainedAlerts+10; i++ {
		m.RecordAlert(domain.PerformanceAlert{Type: "test", Timestamp: time.Now()})
	}
	assert.Len(t, m.Alerts(), domain.MaxRetainedAlerts)
}

func TestMonitorSlowOperationRaisesAlert(t *testing.T) {
	m := NewMonitor(Thresholds{SlowOpMs: 10})
	m.RecordDuration("search", 50*time.Millisecond)
	alerts := m.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "slow_operation", alerts[0].Type)
}

func TestMonitorErrorRateRaisesAlertAfterThreshold(t *testing.T) {
	m := NewMonitor(Thresholds{ErrRateHigh: 0.4})
	m.RecordDuration("insert", time.Millisecond)
	m.RecordError("insert", assertErr{})
	alerts := m.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "error_rate", alerts[0].Type)
}

func TestMonitorAlertCallbackPanicIsolated(t *testing.T) {
	m := NewMonitor(Thresholds{})
	var received int
	m.AddAlertCallback(func(domain.PerformanceAlert) { panic("boom") })
	m.AddAlertCallback(func(domain.PerformanceAlert) { received++ })

	assert.NotPanics(t, func() {
		m.RecordAlert(domain.PerformanceAlert{Type: "test", Timestamp: time.Now()})
	})
	assert.Equal(t, 1, received)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
