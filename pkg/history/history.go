// Package history is the append-only log of executed requests. Records enter
// pending, transition to exactly one terminal state, and are never mutated
// afterwards. Completion order is independent of insertion order; the
// "latest" record is the latest started one.
package history

import (
	"iter"
	"sync"
	"time"

	"the-dev-tools/apiconsole/pkg/errmap"
	"the-dev-tools/apiconsole/pkg/idwrap"
	"the-dev-tools/apiconsole/pkg/model/mcall"
	"the-dev-tools/apiconsole/pkg/model/mexec"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

type Store struct {
	mu     sync.RWMutex
	order  []idwrap.IDWrap
	byID   map[idwrap.IDWrap]*mexec.Record
	latest idwrap.IDWrap
	hasAny bool
}

func New() *Store {
	return &Store{
		byID: make(map[idwrap.IDWrap]*mexec.Record),
	}
}

// Record appends a pending record for a draft about to be sent and returns
// its id. The draft is copied; later caller mutation cannot reach it.
func (s *Store) Record(draft mcall.RequestDraft) idwrap.IDWrap {
	id := idwrap.NewNow()
	rec := &mexec.Record{
		ID:        id,
		Request:   draft.Clone(),
		State:     mexec.StatePending,
		StartedAt: time.Now().UnixMilli(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, id)
	s.byID[id] = rec
	s.latest = id
	s.hasAny = true
	return id
}

// Complete transitions a pending record to its successful terminal state.
// Completing a record twice is a caller bug and fails with invalid_state.
func (s *Store) Complete(id idwrap.IDWrap, resp mexec.ProxyResponse) error {
	return s.finish(id, func(rec *mexec.Record) {
		rec.State = mexec.StateCompleted
		rec.Response = &resp
	})
}

// Fail transitions a pending record to its failed terminal state.
func (s *Store) Fail(id idwrap.IDWrap, code errmap.Code, message string) error {
	return s.finish(id, func(rec *mexec.Record) {
		rec.State = mexec.StateFailed
		rec.Failure = &mexec.Failure{Code: code, Message: message}
	})
}

func (s *Store) finish(id idwrap.IDWrap, apply func(*mexec.Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return errmap.New(errmap.CodeNotFound, "record "+id.String()+" not found", nil)
	}
	if rec.State.Terminal() {
		return errmap.New(errmap.CodeInvalidState, "record "+id.String()+" is already terminal", nil)
	}
	apply(rec)
	rec.FinishedAt = time.Now().UnixMilli()
	return nil
}

// Get returns a copy of the record, so callers can never mutate the log.
func (s *Store) Get(id idwrap.IDWrap) (mexec.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return mexec.Record{}, errmap.New(errmap.CodeNotFound, "record "+id.String()+" not found", nil)
	}
	return *rec, nil
}

// Latest returns the id of the latest started record, regardless of which
// record completed last.
func (s *Store) Latest() (idwrap.IDWrap, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.hasAny
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// List yields record copies in insertion order, oldest first. The sequence
// is restartable and safe against concurrent writes: it walks a snapshot of
// the ids taken when iteration starts.
func (s *Store) List() iter.Seq[mexec.Record] {
	return func(yield func(mexec.Record) bool) {
		s.mu.RLock()
		ids := make([]idwrap.IDWrap, len(s.order))
		copy(ids, s.order)
		s.mu.RUnlock()

		for _, id := range ids {
			rec, err := s.Get(id)
			if err != nil {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// Terminal yields only terminal records, oldest first. Pending records are
// in-flight indicators and never leave the store through this sequence.
func (s *Store) Terminal() iter.Seq[mexec.Record] {
	return func(yield func(mexec.Record) bool) {
		for rec := range s.List() {
			if !rec.State.Terminal() {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// Search fuzzy-matches term against "METHOD url" of each record, insertion
// order preserved. An empty term matches everything.
func (s *Store) Search(term string) []mexec.Record {
	var out []mexec.Record
	for rec := range s.List() {
		if term == "" || fuzzy.MatchFold(term, rec.Request.Method+" "+rec.Request.URL) {
			out = append(out, rec)
		}
	}
	return out
}
