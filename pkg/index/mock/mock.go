// Package mock provides a test double for the index.Store interface.
//
// Use Store to record which records are added and to return pre-canned
// query results without a live database.
//
// Example:
//
//	s := &mock.Store{
//	    QueryResult: []index.Result{{ID: "1-hero", Metadata: map[string]any{"actor": "hero"}}},
//	}
//	results, _ := s.Query(ctx, vec, 7)
package mock

import (
	"context"
	"sync"

	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/index"
)

// AddCall records a single invocation of Add.
type AddCall struct {
	// Ctx is the context passed to Add.
	Ctx context.Context
	// Records is a copy of the record slice passed to Add.
	Records []index.Record
}

// QueryCall records a single invocation of Query.
type QueryCall struct {
	// Ctx is the context passed to Query.
	Ctx context.Context
	// Embedding is the query embedding.
	Embedding []float32
	// K is the requested result count.
	K int
}

// Store is a mock implementation of index.Store.
type Store struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// AddErr, if non-nil, is returned as the error from Add.
	AddErr error

	// QueryResult is returned by Query. If nil, an empty slice is returned.
	QueryResult []index.Result

	// QueryErr, if non-nil, is returned as the error from Query.
	QueryErr error

	// CountValue is returned by Count.
	CountValue int64

	// --- Call records ---

	// AddCalls records every call to Add in order.
	AddCalls []AddCall

	// QueryCalls records every call to Query in order.
	QueryCalls []QueryCall
}

// Add records the call and returns AddErr. Records are not retained as live
// state beyond the call log.
func (s *Store) Add(ctx context.Context, records []index.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]index.Record, len(records))
	copy(cp, records)
	s.AddCalls = append(s.AddCalls, AddCall{Ctx: ctx, Records: cp})
	return s.AddErr
}

// Query records the call and returns QueryResult truncated to k, QueryErr.
func (s *Store) Query(ctx context.Context, embedding []float32, k int) ([]index.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]float32, len(embedding))
	copy(cp, embedding)
	s.QueryCalls = append(s.QueryCalls, QueryCall{Ctx: ctx, Embedding: cp, K: k})
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	results := s.QueryResult
	if results == nil {
		return []index.Result{}, nil
	}
	if k >= 0 && k < len(results) {
		results = results[:k]
	}
	out := make([]index.Result, len(results))
	copy(out, results)
	return out, nil
}

// Count returns CountValue.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CountValue, nil
}

// Added returns all records across every Add call, in order. Convenient for
// asserting on cumulative index contents.
func (s *Store) Added() []index.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []index.Record
	for _, c := range s.AddCalls {
		all = append(all, c.Records...)
	}
	return all
}

// Reset clears all recorded calls. Thread-safe.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AddCalls = nil
	s.QueryCalls = nil
}

// Ensure Store implements index.Store at compile time.
var _ index.Store = (*Store)(nil)
