package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/bikepaths/internal/db"
	"github.com/raphaelgruber/bikepaths/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory PipelineStore.
type memStore struct {
	mu sync.Mutex

	docs         map[string]models.BikePath
	indexed      bool
	indexErr     error
	failIDs      map[string]error
	pingErr      error
	writeOrder   []string
	snapshot     []byte
	runs         map[string]string // id -> status
	runErrors    map[string]string
	writesBefore bool // a write happened before EnsureIndexes
}

func newMemStore() *memStore {
	return &memStore{
		docs:      make(map[string]models.BikePath),
		failIDs:   make(map[string]error),
		runs:      make(map[string]string),
		runErrors: make(map[string]string),
	}
}

func (s *memStore) EnsureIndexes(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexErr != nil {
		return s.indexErr
	}
	s.indexed = true
	return nil
}

func (s *memStore) UpsertBikePath(ctx context.Context, p models.BikePath) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.indexed {
		s.writesBefore = true
	}
	if err, ok := s.failIDs[p.ID]; ok {
		return false, err
	}
	_, exists := s.docs[p.ID]
	s.docs[p.ID] = p
	s.writeOrder = append(s.writeOrder, p.ID)
	return !exists, nil
}

func (s *memStore) Ping(ctx context.Context) error { return s.pingErr }

func (s *memStore) CollectionStats(ctx context.Context) (*db.CollectionStats, error) {
	if s.pingErr != nil {
		return nil, s.pingErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return &db.CollectionStats{Table: "bike_path", Documents: len(s.docs)}, nil
}

func (s *memStore) SaveSnapshot(ctx context.Context, collection []byte, features int, extractionTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = collection
	return nil
}

func (s *memStore) CreateRun(ctx context.Context, id string, limit int, sourceURL string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[id] = models.RunStatusRunning
	return nil
}

func (s *memStore) FinishRun(ctx context.Context, id string, result map[string]any, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if errMsg != "" {
		s.runs[id] = models.RunStatusFailed
		s.runErrors[id] = errMsg
		return nil
	}
	s.runs[id] = models.RunStatusCompleted
	return nil
}

// fakeExtractor returns fixed records or an error.
type fakeExtractor struct {
	records []models.RawRecord
	err     error
}

func (f *fakeExtractor) Fetch(ctx context.Context, limit int) ([]models.RawRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeExtractor) SourceURL() string { return "https://example.test/datastore_search" }

var errConnLost = errors.Join(db.ErrConnection, errors.New("write: broken pipe"))
