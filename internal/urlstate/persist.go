package urlstate

import (
	"context"
	"log"

	"github.com/ziadkadry99/catalog-site/internal/filters"
)

// StorageKey is the durable storage key for the saved filter session.
const StorageKey = "product-filters"

// Snapshot is the stored form of a filter session.
type Snapshot struct {
	Search    string        `json:"search"`
	ViewMode  ViewMode      `json:"viewMode"`
	Accordion string        `json:"accordion"`
	Filters   filters.State `json:"filters"`
}

// SnapshotOf extracts the persisted slots of s.
func SnapshotOf(s State) Snapshot {
	return Snapshot{
		Search:    s.Search,
		ViewMode:  s.View,
		Accordion: s.Accordion,
		Filters:   s.Filters.Clone(),
	}
}

// State expands a snapshot into a full State starting on page 1.
func (sn Snapshot) State() State {
	s := Default()
	s.Search = sn.Search
	if sn.ViewMode.Valid() {
		s.View = sn.ViewMode
	}
	if sn.Accordion != "" {
		s.Accordion = sn.Accordion
	}
	s.Filters = sn.Filters.Clone()
	if len(s.Filters.Auxiliary) == 0 {
		s.Filters.Auxiliary = []string{filters.ShowAll}
	}
	s.CategoryID = s.Filters.CategoryID()
	return s
}

// Persister saves and restores snapshots. Implementations swallow storage
// failures; a session without storage keeps working in memory.
type Persister interface {
	LoadSnapshot(ctx context.Context) (Snapshot, bool)
	SaveSnapshot(ctx context.Context, sn Snapshot)
}

// KV is the durable key/value store a StoragePersister writes to.
type KV interface {
	Get(ctx context.Context, key string, v any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

// StoragePersister stores snapshots under StorageKey in a KV.
type StoragePersister struct {
	kv KV
}

// NewStoragePersister creates a Persister over kv.
func NewStoragePersister(kv KV) *StoragePersister {
	return &StoragePersister{kv: kv}
}

// LoadSnapshot returns the saved snapshot. Read or decode errors are logged
// and reported as "nothing saved".
func (p *StoragePersister) LoadSnapshot(ctx context.Context) (Snapshot, bool) {
	var sn Snapshot
	ok, err := p.kv.Get(ctx, StorageKey, &sn)
	if err != nil {
		log.Printf("urlstate: loading %s: %v", StorageKey, err)
		return Snapshot{}, false
	}
	return sn, ok
}

// SaveSnapshot writes sn. Write errors are logged.
func (p *StoragePersister) SaveSnapshot(ctx context.Context, sn Snapshot) {
	if err := p.kv.Set(ctx, StorageKey, sn); err != nil {
		log.Printf("urlstate: saving %s: %v", StorageKey, err)
	}
}
