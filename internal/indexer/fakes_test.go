package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bull/pdf-ingest/internal/document"
	"github.com/bull/pdf-ingest/internal/storage"
)

// memIndex is an in-memory storage.Index that records every call.
type memIndex struct {
	mu          sync.Mutex
	docs        map[string]document.Segment
	upsertSizes []int
	existsCalls int
	existsErr   error
	failOnCall  int // 1-based upsert call that fails; 0 never fails
	deleted     int
}

func newMemIndex() *memIndex {
	return &memIndex{docs: make(map[string]document.Segment)}
}

func (m *memIndex) Exists(_ context.Context, ids []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls++
	if m.existsErr != nil {
		return nil, m.existsErr
	}
	found := make(map[string]bool)
	for _, id := range ids {
		if _, ok := m.docs[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

func (m *memIndex) Upsert(_ context.Context, ids []string, segs []document.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertSizes = append(m.upsertSizes, len(ids))
	if m.failOnCall > 0 && len(m.upsertSizes) == m.failOnCall {
		return fmt.Errorf("%w: injected", storage.ErrIndexUnavailable)
	}
	for i, id := range ids {
		m.docs[id] = segs[i]
	}
	return nil
}

func (m *memIndex) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs), nil
}

func (m *memIndex) Query(_ context.Context, _ string, _ int) ([]storage.Hit, error) {
	return nil, nil
}

func (m *memIndex) DeleteCollection(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]document.Segment)
	m.deleted++
	return nil
}

// flushingIndex adds the Flusher capability to memIndex.
type flushingIndex struct {
	*memIndex
	flushes int
}

func (f *flushingIndex) Flush(_ context.Context) error {
	f.flushes++
	return nil
}

// mapExtractor returns canned segments per path.
type mapExtractor map[string][]document.Segment

var errUnreadable = errors.New("unreadable file")

func (m mapExtractor) Extract(_ context.Context, path string) ([]document.Segment, error) {
	segs, ok := m[path]
	if !ok {
		return nil, errUnreadable
	}
	return segs, nil
}

func pages(source string, n int) []document.Segment {
	segs := make([]document.Segment, n)
	for i := range n {
		segs[i] = document.NewSegment(fmt.Sprintf("content of page %d", i), source, i)
	}
	return segs
}
