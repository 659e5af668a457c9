package urlstate

import (
	"context"
	"net/url"
	"sync"
)

// Synchronizer mirrors a State into a Location and a Persister.
type Synchronizer struct {
	loc   Location
	store Persister

	mu      sync.Mutex
	state   State
	encoded string // last query string written or observed
}

// NewSynchronizer creates a synchronizer. store may be nil.
func NewSynchronizer(loc Location, store Persister) *Synchronizer {
	return &Synchronizer{loc: loc, store: store, state: Default()}
}

// Load hydrates the state: from the query string when it carries any known
// key, else from storage, else defaults. When the state did not come from
// the URL it is written back so the address bar reflects it.
func (s *Synchronizer) Load(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.loc.Query()
	if HasState(q) {
		s.state = Parse(q)
		s.encoded = q.Encode()
		return s.state
	}

	st := Default()
	if s.store != nil {
		if sn, ok := s.store.LoadSnapshot(ctx); ok {
			st = sn.State()
		}
	}
	s.state = st
	s.writeLocked(Encode(q, st))
	return st
}

// Read parses the current query string.
func (s *Synchronizer) Read() State {
	return Parse(s.loc.Query())
}

// State returns the last synchronised state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update merges p into the state, replaces the current history entry's
// query and persists the resulting snapshot.
func (s *Synchronizer) Update(ctx context.Context, p Partial) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := p.Apply(s.state)
	s.writeLocked(Merge(s.loc.Query(), p))
	s.state = next
	if s.store != nil {
		s.store.SaveSnapshot(ctx, SnapshotOf(next))
	}
	return next
}

// Reconcile picks up external navigation (back/forward). It reports whether
// the state changed. Nothing is written back.
func (s *Synchronizer) Reconcile() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.loc.Query()
	enc := q.Encode()
	if enc == s.encoded {
		return s.state, false
	}
	s.encoded = enc

	next := Parse(q)
	if next.Equal(s.state) {
		return s.state, false
	}
	s.state = next
	return next, true
}

func (s *Synchronizer) writeLocked(q url.Values) {
	enc := q.Encode()
	if enc == s.encoded {
		return
	}
	s.loc.Replace(q)
	s.encoded = enc
}
