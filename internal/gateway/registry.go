package gateway

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/forgearmory/armory/internal/telemetry"
)

// RegistryEntry is one tool registration: the mapping from a prefixed tool
// name to its owning backend and original definition. Entries are immutable
// once inserted; a refresh replaces them wholesale.
type RegistryEntry struct {
	// ToolID is the database row backing this entry, referenced by call records.
	ToolID uint

	BackendName  string
	Name         string
	PrefixedName string
	Description  string
	InputSchema  json.RawMessage
	RefreshedAt  time.Time
}

// Registry is the authoritative in-memory mapping from prefixed tool name to
// backend and tool definition. The backend manager is its sole writer; the
// request router only reads.
//
// All mutations happen under a single exclusive lock, so concurrent readers
// observe either the old complete entry set for a backend or the new one,
// never a mix.
type Registry struct {
	mu sync.RWMutex

	// byPrefixed maps prefixed tool name to its entry.
	byPrefixed map[string]*RegistryEntry
	// byBackend maps backend name to the prefixed names it currently owns.
	byBackend map[string][]string

	logger  *zap.Logger
	metrics telemetry.CustomMetrics
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *zap.Logger, metrics telemetry.CustomMetrics) *Registry {
	return &Registry{
		byPrefixed: make(map[string]*RegistryEntry),
		byBackend:  make(map[string][]string),
		logger:     logger,
		metrics:    metrics,
	}
}

// ReplaceForBackend atomically discards all entries owned by backendName and
// inserts the new set. If a new prefixed name collides with an entry owned by
// another backend, the newer registration wins and the conflict is logged and
// counted rather than failing the refresh.
func (r *Registry) ReplaceForBackend(backendName string, entries []*RegistryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(backendName)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if prev, ok := r.byPrefixed[e.PrefixedName]; ok && prev.BackendName != e.BackendName {
			r.logger.Warn("prefixed tool name conflict, newer registration wins",
				zap.String("prefixed_name", e.PrefixedName),
				zap.String("previous_backend", prev.BackendName),
				zap.String("new_backend", e.BackendName),
			)
			r.metrics.RecordRegistryConflict(context.Background(), e.BackendName, e.PrefixedName)
			r.dropFromBackendIndexLocked(prev.BackendName, e.PrefixedName)
		}
		r.byPrefixed[e.PrefixedName] = e
		names = append(names, e.PrefixedName)
	}

	if len(names) > 0 {
		r.byBackend[backendName] = names
	}
}

// RemoveForBackend discards all entries owned by backendName.
func (r *Registry) RemoveForBackend(backendName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(backendName)
}

func (r *Registry) removeLocked(backendName string) {
	for _, name := range r.byBackend[backendName] {
		// an entry may have been overwritten by another backend's refresh,
		// only remove it if we still own it
		if e, ok := r.byPrefixed[name]; ok && e.BackendName == backendName {
			delete(r.byPrefixed, name)
		}
	}
	delete(r.byBackend, backendName)
}

func (r *Registry) dropFromBackendIndexLocked(backendName, prefixedName string) {
	names := r.byBackend[backendName]
	for i, n := range names {
		if n == prefixedName {
			r.byBackend[backendName] = append(names[:i], names[i+1:]...)
			break
		}
	}
}

// Resolve returns the entry registered under the prefixed name.
func (r *Registry) Resolve(prefixedName string) (*RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byPrefixed[prefixedName]
	return e, ok
}

// ListAll returns every entry in the registry, ordered by prefixed name.
func (r *Registry) ListAll() []*RegistryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*RegistryEntry, 0, len(r.byPrefixed))
	for _, e := range r.byPrefixed {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].PrefixedName < entries[j].PrefixedName
	})
	return entries
}

// ListForBackend returns the entries currently owned by backendName,
// ordered by original tool name.
func (r *Registry) ListForBackend(backendName string) []*RegistryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.byBackend[backendName]
	entries := make([]*RegistryEntry, 0, len(names))
	for _, name := range names {
		if e, ok := r.byPrefixed[name]; ok && e.BackendName == backendName {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPrefixed)
}
