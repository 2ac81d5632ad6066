package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/johncmanuel/isabot/internal/domain"
)

// Memory is an in-process RecordStore for local development and tests.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

func (s *Memory) Scan(_ context.Context, prefix string) ([]KeyValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []KeyValue
	for k, v := range s.records {
		if strings.HasPrefix(k, prefix) {
			val := make([]byte, len(v))
			copy(val, v)
			results = append(results, KeyValue{Key: k, Value: val})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.records[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	val := make([]byte, len(v))
	copy(val, v)
	return val, nil
}

func (s *Memory) CompareAndSet(_ context.Context, key string, expectAbsent bool, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.records[key]
	if exists == expectAbsent {
		return false, nil
	}
	s.records[key] = append([]byte(nil), value...)
	return true, nil
}

func (s *Memory) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = append([]byte(nil), value...)
	return nil
}

func (s *Memory) Close() error {
	return nil
}
