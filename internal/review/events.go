package review

import "github.com/banshee-data/trace.review/internal/annotations"

// Event is an operator input applied to a Session.
type Event interface {
	apply(s *Session) bool
}

// Confirm commits the staged judgment and advances.
type Confirm struct{}

// SetLabel stages a status.
type SetLabel struct{ Status annotations.Status }

// ToggleMoisture flips the staged moisture flag.
type ToggleMoisture struct{}

// SetMoisture stages an explicit moisture flag.
type SetMoisture struct{ IsDry bool }

// StepBack moves one sample back.
type StepBack struct{}

// JumpTo moves to Index; out of range is ignored.
type JumpTo struct{ Index int }

// JumpNearest moves to Index clamped into the batch, as manual index entry
// does. It does nothing when no batch is loaded.
type JumpNearest struct{ Index int }

func (Confirm) apply(s *Session) bool        { return s.Confirm() }
func (e SetLabel) apply(s *Session) bool     { return s.SetLabel(e.Status) }
func (ToggleMoisture) apply(s *Session) bool { return s.ToggleMoisture() }
func (e SetMoisture) apply(s *Session) bool  { return s.SetMoisture(e.IsDry) }
func (StepBack) apply(s *Session) bool       { return s.StepBack() }
func (e JumpTo) apply(s *Session) bool       { return s.JumpTo(e.Index) }

func (e JumpNearest) apply(s *Session) bool {
	n := s.Len()
	if n == 0 {
		return false
	}
	return s.JumpTo(ClampIndex(e.Index, n))
}
