package progress

import (
	"context"
	"slices"
	"sync"
)

// DefaultNamespace is the key the progress record is stored under.
const DefaultNamespace = "suno_dl_progress"

// Record is the persisted progress: which ids finished and which failed.
//
// An id is in at most one of the two lists.
type Record struct {
	Downloaded []string `json:"downloaded"`
	Failed     []string `json:"failed"`
}

// Stats summarises a Record.
type Stats struct {
	Done   int
	Failed int
}

// Backend is the durable medium behind a Store.
//
// Read must return an empty Record, not an error, when nothing has been
// stored yet.
type Backend interface {
	Read(ctx context.Context) (Record, error)
	Write(ctx context.Context, rec Record) error
	Clear(ctx context.Context) error
}

// Store tracks per-item outcomes across runs.
//
// The record is read once on Open and every mutation is written through to
// the backend, so a crash loses at most the item in flight.
type Store struct {
	backend Backend

	mu         sync.RWMutex
	downloaded []string
	failed     []string
	doneSet    map[string]struct{}
	failedSet  map[string]struct{}
}

// Open loads the record from backend.
func Open(ctx context.Context, backend Backend) (*Store, error) {
	rec, err := backend.Read(ctx)
	if err != nil {
		return nil, err
	}

	s := &Store{backend: backend}
	s.load(rec)
	return s, nil
}

func (s *Store) load(rec Record) {
	s.downloaded = nil
	s.failed = nil
	s.doneSet = make(map[string]struct{}, len(rec.Downloaded))
	s.failedSet = make(map[string]struct{}, len(rec.Failed))

	for _, id := range rec.Downloaded {
		if _, dup := s.doneSet[id]; dup {
			continue
		}
		s.doneSet[id] = struct{}{}
		s.downloaded = append(s.downloaded, id)
	}
	// A record written by hand could list an id twice; done wins.
	for _, id := range rec.Failed {
		if _, done := s.doneSet[id]; done {
			continue
		}
		if _, dup := s.failedSet[id]; dup {
			continue
		}
		s.failedSet[id] = struct{}{}
		s.failed = append(s.failed, id)
	}
}

// IsDone reports whether id has been downloaded.
func (s *Store) IsDone(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.doneSet[id]
	return ok
}

// IsFailed reports whether id is recorded as failed.
func (s *Store) IsFailed(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.failedSet[id]
	return ok
}

// MarkDone records a successful download. An id recorded as failed by an
// earlier run moves to done. Marking an id twice is a no-op.
func (s *Store) MarkDone(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doneSet[id]; ok {
		return nil
	}
	s.doneSet[id] = struct{}{}
	s.downloaded = append(s.downloaded, id)
	if _, ok := s.failedSet[id]; ok {
		delete(s.failedSet, id)
		s.failed = slices.DeleteFunc(s.failed, func(f string) bool { return f == id })
	}
	return s.backend.Write(ctx, s.snapshot())
}

// MarkFailed records an item whose retries were exhausted. Ids that are
// already done stay done. Marking an id twice is a no-op.
func (s *Store) MarkFailed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doneSet[id]; ok {
		return nil
	}
	if _, ok := s.failedSet[id]; ok {
		return nil
	}
	s.failedSet[id] = struct{}{}
	s.failed = append(s.failed, id)
	return s.backend.Write(ctx, s.snapshot())
}

// Stats returns the number of done and failed ids.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Done: len(s.downloaded), Failed: len(s.failed)}
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *Store) snapshot() Record {
	return Record{
		Downloaded: append([]string{}, s.downloaded...),
		Failed:     append([]string{}, s.failed...),
	}
}

// Reset clears the record both in memory and in the backend.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Clear(ctx); err != nil {
		return err
	}
	s.load(Record{})
	return nil
}

// MemoryBackend keeps the record in process memory. It is used for dry runs
// and tests.
type MemoryBackend struct {
	mu     sync.Mutex
	rec    Record
	writes int
}

// NewMemoryBackend returns a backend preloaded with rec.
func NewMemoryBackend(rec Record) *MemoryBackend {
	return &MemoryBackend{rec: rec}
}

// Read implements Backend.
func (m *MemoryBackend) Read(ctx context.Context) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Record{
		Downloaded: append([]string{}, m.rec.Downloaded...),
		Failed:     append([]string{}, m.rec.Failed...),
	}, nil
}

// Write implements Backend.
func (m *MemoryBackend) Write(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = rec
	m.writes++
	return nil
}

// Clear implements Backend.
func (m *MemoryBackend) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = Record{}
	return nil
}

// Writes returns how many times Write was called.
func (m *MemoryBackend) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
