package urlstate

import (
	"net/url"
	"sync"
)

// Location is the address bar the synchronizer mirrors into.
type Location interface {
	// Query returns the current query string.
	Query() url.Values
	// Replace swaps the query of the current history entry without adding one.
	Replace(q url.Values)
}

// MemoryLocation is an in-process Location with a history stack, so
// back/forward navigation can be simulated.
type MemoryLocation struct {
	mu      sync.Mutex
	path    string
	entries []string
	index   int
}

// NewMemoryLocation creates a location at rawURL. Only path and query are
// kept.
func NewMemoryLocation(rawURL string) (*MemoryLocation, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return &MemoryLocation{path: path, entries: []string{u.RawQuery}}, nil
}

// Query returns the query of the current entry.
func (l *MemoryLocation) Query() url.Values {
	l.mu.Lock()
	defer l.mu.Unlock()
	q, _ := url.ParseQuery(l.entries[l.index])
	return q
}

// Replace rewrites the current entry.
func (l *MemoryLocation) Replace(q url.Values) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.index] = q.Encode()
}

// Navigate pushes a new entry, dropping any forward history.
func (l *MemoryLocation) Navigate(q url.Values) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries[:l.index+1], q.Encode())
	l.index++
}

// Back moves one entry back. It reports false at the start of history.
func (l *MemoryLocation) Back() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.index == 0 {
		return false
	}
	l.index--
	return true
}

// Forward moves one entry forward. It reports false at the end of history.
func (l *MemoryLocation) Forward() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.index >= len(l.entries)-1 {
		return false
	}
	l.index++
	return true
}

// Len returns the number of history entries.
func (l *MemoryLocation) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// String renders the current path and query.
func (l *MemoryLocation) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if q := l.entries[l.index]; q != "" {
		return l.path + "?" + q
	}
	return l.path
}
