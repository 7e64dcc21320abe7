// Package review drives the operator's pass over a batch: which sample is
// under review, what judgment is staged for it, and where confirming moves
// the cursor next.
package review

import (
	"github.com/banshee-data/trace.review/internal/annotations"
	"github.com/banshee-data/trace.review/internal/samples"
)

// State is the session's coarse state.
type State int

const (
	// Empty means no batch (or a zero-length batch) is loaded.
	Empty State = iota
	// Active means the cursor points at a sample.
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "empty"
}

// Store is the slice of the annotation store a session needs.
type Store interface {
	Get(id string) (annotations.Annotation, bool)
	Set(id string, a annotations.Annotation) error
}

// Judgment is the staged, not yet committed, label for the current sample.
type Judgment struct {
	Status annotations.Status `json:"status"`
	IsDry  bool               `json:"is_dry"`
}

// Complete reports whether the judgment can be committed.
func (j Judgment) Complete() bool { return j.Status.Valid() }

// Session is the navigation state machine over one batch. It owns the
// sequence, cursor and staged judgment; committed annotations live in the
// store. A Session is not safe for concurrent use; Controller serialises
// access.
type Session struct {
	store    Store
	sequence []samples.Sample
	cursor   int
	staged   Judgment
}

// NewSession returns an Empty session backed by store.
func NewSession(store Store) *Session {
	return &Session{store: store, cursor: -1}
}

// Load installs seq and moves the cursor to the first unannotated sample,
// or the last sample when all are annotated.
func (s *Session) Load(seq []samples.Sample) {
	s.sequence = seq
	if len(seq) == 0 {
		s.cursor = -1
		s.staged = Judgment{}
		return
	}
	s.moveTo(s.nextUnannotated(0))
}

// State returns Empty or Active.
func (s *Session) State() State {
	if s.cursor < 0 {
		return Empty
	}
	return Active
}

// Cursor returns the index under review, or -1 when Empty.
func (s *Session) Cursor() int { return s.cursor }

// Len returns the batch length.
func (s *Session) Len() int { return len(s.sequence) }

// Sequence returns the loaded batch. Callers must not modify it.
func (s *Session) Sequence() []samples.Sample { return s.sequence }

// Current returns the sample under review.
func (s *Session) Current() (samples.Sample, bool) {
	if s.cursor < 0 {
		return samples.Sample{}, false
	}
	return s.sequence[s.cursor], true
}

// Staged returns the pending judgment for the current sample.
func (s *Session) Staged() Judgment { return s.staged }

// Committed returns the stored annotation for the current sample, if any.
func (s *Session) Committed() (annotations.Annotation, bool) {
	cur, ok := s.Current()
	if !ok {
		return annotations.Annotation{}, false
	}
	return s.store.Get(cur.ID)
}

// Confirm commits the staged judgment for the current sample and advances
// to the next unannotated sample at or after the cursor, else the last one.
// It returns false, changing nothing, when Empty or when no status is staged.
func (s *Session) Confirm() bool {
	cur, ok := s.Current()
	if !ok || !s.staged.Complete() {
		return false
	}
	a := annotations.Annotation{Status: s.staged.Status, IsDry: s.staged.IsDry, Hash: cur.ID}
	if err := s.store.Set(cur.ID, a); err != nil {
		return false
	}
	s.moveTo(s.nextUnannotated(s.cursor))
	return true
}

// StepBack moves one sample back. It is a no-op at index 0 or when Empty.
func (s *Session) StepBack() bool {
	if s.cursor <= 0 {
		return false
	}
	s.moveTo(s.cursor - 1)
	return true
}

// JumpTo moves to index i. Out-of-range indexes are ignored.
func (s *Session) JumpTo(i int) bool {
	if i < 0 || i >= len(s.sequence) {
		return false
	}
	s.moveTo(i)
	return true
}

// SetLabel stages a status for the current sample.
func (s *Session) SetLabel(status annotations.Status) bool {
	if s.cursor < 0 || !status.Valid() {
		return false
	}
	s.staged.Status = status
	return true
}

// ToggleMoisture flips the staged moisture flag.
func (s *Session) ToggleMoisture() bool {
	if s.cursor < 0 {
		return false
	}
	s.staged.IsDry = !s.staged.IsDry
	return true
}

// SetMoisture stages an explicit moisture flag.
func (s *Session) SetMoisture(dry bool) bool {
	if s.cursor < 0 {
		return false
	}
	s.staged.IsDry = dry
	return true
}

func (s *Session) nextUnannotated(from int) int {
	for i := from; i < len(s.sequence); i++ {
		if _, ok := s.store.Get(s.sequence[i].ID); !ok {
			return i
		}
	}
	return len(s.sequence) - 1
}

// moveTo sets the cursor and seeds the staged judgment from the stored
// annotation, defaulting to no status and dry.
func (s *Session) moveTo(i int) {
	s.cursor = i
	if a, ok := s.store.Get(s.sequence[i].ID); ok {
		s.staged = Judgment{Status: a.Status, IsDry: a.IsDry}
		return
	}
	s.staged = Judgment{Status: annotations.StatusNone, IsDry: true}
}
