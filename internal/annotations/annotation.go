// Package annotations stores the operator's judgments for decoded samples and
// persists them to a durable key-value slot.
package annotations

import (
	"errors"
	"fmt"
)

// Status is the quality label assigned to a sample.
type Status string

const (
	StatusNone     Status = ""
	StatusPass     Status = "pass"
	StatusObserve  Status = "observe"
	StatusFail     Status = "fail"
	StatusChecksum Status = "checksum" // manual label only; no integrity check is performed
)

// Statuses lists the assignable labels in key-binding order.
var Statuses = []Status{StatusPass, StatusObserve, StatusFail, StatusChecksum}

// ErrInvalidStatus is returned for labels outside Statuses.
var ErrInvalidStatus = errors.New("invalid status")

// Valid reports whether s is one of the four assignable labels.
func (s Status) Valid() bool {
	switch s {
	case StatusPass, StatusObserve, StatusFail, StatusChecksum:
		return true
	}
	return false
}

// ParseStatus validates a label string. "none" and "" parse to StatusNone.
func ParseStatus(v string) (Status, error) {
	if v == "" || v == "none" {
		return StatusNone, nil
	}
	s := Status(v)
	if !s.Valid() {
		return StatusNone, fmt.Errorf("%w: %q", ErrInvalidStatus, v)
	}
	return s, nil
}

// Display returns the label shown to the operator.
func (s Status) Display() string {
	switch s {
	case StatusPass:
		return "Pass"
	case StatusObserve:
		return "Observe"
	case StatusFail:
		return "Fail"
	case StatusChecksum:
		return "Checksum"
	}
	return "..."
}

// Annotation is the committed judgment for one sample. Hash repeats the map
// key so a flat export stays self-describing.
type Annotation struct {
	Status Status `json:"status"`
	IsDry  bool   `json:"is_dry"`
	Hash   string `json:"hash"`
}
