package ingest

import (
	"sync"
	"time"

	"ragcore/internal/rag/domain"
	"ragcore/internal/ragerr"
)

// progressGCAge is the retention window from §3: records whose lastUpdate is
// older than this are eligible for garbage collection.
const progressGCAge = 24 * time.Hour

// progressStore owns every UploadProgress record for process lifetime,
// keyed by documentId, matching §3's "UploadProgress records are owned by
// the Ingestion Coordinator" invariant.
type progressStore struct {
	mu      sync.Mutex
	records map[string]*domain.UploadProgress
}

func newProgressStore() *progressStore {
	return &progressStore{records: make(map[string]*domain.UploadProgress)}
}

// create seeds a PENDING/0% record for documentId.
func (s *progressStore) create(documentID, filename string, fileSize int64) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[documentID] = &domain.UploadProgress{
		DocumentID:  documentID,
		Filename:    filename,
		FileSize:    fileSize,
		Progress:    domain.ProgressFor(domain.StepPending),
		CurrentStep: domain.StepPending,
		StartTime:   now,
		LastUpdate:  now,
	}
}

// advance moves documentId to step, enforcing the monotonicity invariant
// (§3): currentStep and progress never decrease. Unknown documentId is a
// silent no-op since the background goroutine never races its own creation.
func (s *progressStore) advance(documentID string, step domain.UploadStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[documentID]
	if !ok {
		return
	}
	progress := domain.ProgressFor(step)
	if step < rec.CurrentStep || progress < rec.Progress {
		return
	}
	rec.CurrentStep = step
	rec.Progress = progress
	rec.LastUpdate = time.Now()
}

// fail transitions documentId to FAILED, recording err's message.
func (s *progressStore) fail(documentID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[documentID]
	if !ok {
		return
	}
	rec.CurrentStep = domain.StepFailed
	rec.ErrorMessage = err.Error()
	rec.LastUpdate = time.Now()
}

// get returns a copy of the record for documentId, or NotFound.
func (s *progressStore) get(documentID string) (domain.UploadProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[documentID]
	if !ok {
		return domain.UploadProgress{}, ragerr.New("ingest.GetProgress", ragerr.NotFound)
	}
	return *rec, nil
}

// gc removes records whose lastUpdate is older than progressGCAge, returning
// the number removed. Runs only when called, through Coordinator.RunGC
// (§3 retention).
func (s *progressStore) gc(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.records {
		if now.Sub(rec.LastUpdate) > progressGCAge {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}
