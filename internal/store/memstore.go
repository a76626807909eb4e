package store

import (
	"sort"
	"sync"
	"time"

	"bindery/internal/jobs"
)

// MemStore is the in-process ephemeral job store. Each entry carries its own
// mutex, so a Mutate callback observes and updates a job with no interleaved
// writers for that job — which is what makes the worker claim protocol
// atomic — while writes to other jobs proceed untouched. The store lock only
// guards map membership.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	ttl     time.Duration
	now     func() time.Time
}

type memEntry struct {
	mu        sync.Mutex
	job       *jobs.Job
	expiresAt time.Time // zero means no expiry
	gone      bool      // deleted or purged while a writer held a stale pointer
}

// NewMemStore creates an ephemeral store whose terminal entries expire after ttl.
func NewMemStore(ttl time.Duration) *MemStore {
	return &MemStore{
		entries: make(map[string]*memEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores a snapshot of the job, replacing any existing entry. Terminal
// jobs get an expiry stamp; non-terminal jobs never expire.
func (m *MemStore) Put(job *jobs.Job) {
	if job == nil {
		return
	}
	clone := job.Clone()
	for {
		entry := m.getOrCreate(clone.ID)
		entry.mu.Lock()
		if entry.gone {
			// Removed between lookup and lock; start over with a fresh entry.
			entry.mu.Unlock()
			continue
		}
		m.store(entry, clone)
		entry.mu.Unlock()
		return
	}
}

func (m *MemStore) getOrCreate(id string) *memEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		entry = &memEntry{}
		m.entries[id] = entry
	}
	return entry
}

func (m *MemStore) lookup(id string) (*memEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	return entry, ok
}

// store writes the job into the entry. Caller holds entry.mu.
func (m *MemStore) store(entry *memEntry, job *jobs.Job) {
	entry.job = job
	if job.IsTerminal() && m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	} else {
		entry.expiresAt = time.Time{}
	}
}

// Get returns a snapshot of the job, or jobs.ErrNotFound when absent or expired.
func (m *MemStore) Get(id string) (*jobs.Job, error) {
	entry, ok := m.lookup(id)
	if !ok {
		return nil, jobs.ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.gone || m.expired(entry) {
		return nil, jobs.ErrNotFound
	}
	return entry.job.Clone(), nil
}

// Mutate applies fn to the stored job under that entry's lock and returns a
// snapshot of the result. When fn returns an error the entry is left exactly
// as it was. Mutations of other entries are never blocked, even while fn is
// mid-flight.
func (m *MemStore) Mutate(id string, fn func(*jobs.Job) error) (*jobs.Job, error) {
	entry, ok := m.lookup(id)
	if !ok {
		return nil, jobs.ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.gone || m.expired(entry) {
		return nil, jobs.ErrNotFound
	}
	candidate := entry.job.Clone()
	if err := fn(candidate); err != nil {
		return nil, err
	}
	m.store(entry, candidate)
	return candidate.Clone(), nil
}

// List returns snapshots of every live entry ordered by creation time, oldest
// first, with ties broken by id for a stable queue order.
func (m *MemStore) List() []*jobs.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*jobs.Job, 0, len(m.entries))
	for _, entry := range m.entries {
		entry.mu.Lock()
		if !entry.gone && !m.expired(entry) {
			out = append(out, entry.job.Clone())
		}
		entry.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete removes an entry. Missing ids are a no-op.
func (m *MemStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return
	}
	entry.mu.Lock()
	entry.gone = true
	entry.mu.Unlock()
	delete(m.entries, id)
}

// PurgeExpired removes entries past their TTL and returns them.
func (m *MemStore) PurgeExpired() []*jobs.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged []*jobs.Job
	for id, entry := range m.entries {
		entry.mu.Lock()
		if m.expired(entry) {
			entry.gone = true
			purged = append(purged, entry.job)
			delete(m.entries, id)
		}
		entry.mu.Unlock()
	}
	return purged
}

// Len reports the number of live entries.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, entry := range m.entries {
		entry.mu.Lock()
		if !entry.gone && !m.expired(entry) {
			count++
		}
		entry.mu.Unlock()
	}
	return count
}

// expired reports whether the entry is past its TTL. Caller holds entry.mu.
func (m *MemStore) expired(entry *memEntry) bool {
	return !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt)
}
