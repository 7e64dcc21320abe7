package annotations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/trace.review/internal/monitoring"
)

// DefaultSlotName is the well-known slot holding the whole store.
const DefaultSlotName = "annotations"

// Slot is a durable key-value entry that holds the serialised store.
type Slot interface {
	// Read returns the stored bytes; found is false when nothing was ever written.
	Read(ctx context.Context, name string) (data []byte, found bool, err error)
	// Write replaces the stored bytes.
	Write(ctx context.Context, name string, data []byte) error
}

var (
	// ErrMalformedStore is matched by every MalformedStoreError.
	ErrMalformedStore = errors.New("malformed annotation store")
	// ErrQuarantined is returned by Flush while a malformed slot awaits an
	// explicit reset.
	ErrQuarantined = errors.New("annotation store is quarantined; accept a reset before flushing")
)

// MalformedStoreError reports a slot whose content could not be parsed. The
// raw bytes are kept so they can be copied aside on reset.
type MalformedStoreError struct {
	Slot string
	Err  error
}

func (e *MalformedStoreError) Error() string {
	return fmt.Sprintf("annotation slot %q is malformed: %v", e.Slot, e.Err)
}

func (e *MalformedStoreError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrMalformedStore) match.
func (e *MalformedStoreError) Is(target error) bool { return target == ErrMalformedStore }

// Store maps sample identity to Annotation. It is loaded once from its slot,
// mutated by confirmations and flushed back periodically.
type Store struct {
	mu      sync.RWMutex
	slot    Slot
	name    string
	entries map[string]Annotation

	// quarantine holds the unparsable slot content after a malformed Load.
	// While non-nil, Flush refuses to overwrite the slot.
	quarantine []byte
	now        func() time.Time
}

// NewStore creates an empty store bound to slot under name. An empty name
// uses DefaultSlotName.
func NewStore(slot Slot, name string) *Store {
	if name == "" {
		name = DefaultSlotName
	}
	return &Store{
		slot:    slot,
		name:    name,
		entries: make(map[string]Annotation),
		now:     time.Now,
	}
}

// SlotName returns the slot this store reads and writes.
func (s *Store) SlotName() string { return s.name }

// Load replaces the in-memory mapping with the slot content. An absent slot
// yields an empty store. Malformed content leaves the store empty and
// quarantined, and returns a *MalformedStoreError.
func (s *Store) Load(ctx context.Context) error {
	data, found, err := s.slot.Read(ctx, s.name)
	if err != nil {
		return fmt.Errorf("failed to read annotation slot %q: %w", s.name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]Annotation)
	s.quarantine = nil
	if !found {
		monitoring.Logf("annotation slot %q is empty; starting fresh", s.name)
		return nil
	}

	entries, err := ParseMapping(data)
	if err != nil {
		s.quarantine = append([]byte(nil), data...)
		return &MalformedStoreError{Slot: s.name, Err: err}
	}
	s.entries = entries
	monitoring.Logf("Loaded %d annotations from slot %q", len(entries), s.name)
	return nil
}

// Quarantined reports whether a malformed load is awaiting AcceptReset.
func (s *Store) Quarantined() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quarantine != nil
}

// AcceptReset is the operator's explicit confirmation that malformed history
// may be replaced. The raw content is first copied to a backup slot whose name
// is returned; annotations made since the failed load are kept.
func (s *Store) AcceptReset(ctx context.Context) (string, error) {
	s.mu.Lock()
	raw := s.quarantine
	s.mu.Unlock()
	if raw == nil {
		return "", nil
	}

	backup := fmt.Sprintf("%s.corrupt-%d", s.name, s.now().Unix())
	if err := s.slot.Write(ctx, backup, raw); err != nil {
		return "", fmt.Errorf("failed to back up malformed slot to %q: %w", backup, err)
	}

	s.mu.Lock()
	s.quarantine = nil
	s.mu.Unlock()
	monitoring.Logf("malformed annotation slot %q copied to %q; store reset accepted", s.name, backup)
	return backup, nil
}

// Flush writes the whole mapping to the slot, even when nothing changed.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	if s.quarantine != nil {
		s.mu.RUnlock()
		return ErrQuarantined
	}
	data, err := MarshalMapping(s.entries)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode annotations: %w", err)
	}

	if err := s.slot.Write(ctx, s.name, data); err != nil {
		return fmt.Errorf("failed to write annotation slot %q: %w", s.name, err)
	}
	return nil
}

// Get returns the annotation for id.
func (s *Store) Get(id string) (Annotation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.entries[id]
	return a, ok
}

// Has reports whether id has an annotation.
func (s *Store) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Set stores a for id, overwriting any previous judgment. Hash is forced to id.
func (s *Store) Set(id string, a Annotation) error {
	if !a.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, a.Status)
	}
	a.Hash = id

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = a
	return nil
}

// Len returns the number of annotations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// All returns a snapshot copy of the mapping.
func (s *Store) All() map[string]Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Annotation, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Subset returns the annotations whose keys are in ids. Identities without
// an annotation are skipped.
func (s *Store) Subset(ids []string) map[string]Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Annotation)
	for _, id := range ids {
		if a, ok := s.entries[id]; ok {
			out[id] = a
		}
	}
	return out
}

// IDs returns the annotated identities in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
