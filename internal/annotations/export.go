package annotations

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/banshee-data/trace.review/internal/security"
)

const (
	// ExportSuffix is appended to the batch name to form the export filename.
	ExportSuffix = "_annotations.json"
	// ExportContentType is the MIME type of an export.
	ExportContentType = "application/json"
)

// MarshalMapping encodes annotations as a JSON object keyed by identity.
// Keys are emitted in sorted order, so equal mappings encode identically.
func MarshalMapping(m map[string]Annotation) ([]byte, error) {
	if m == nil {
		m = map[string]Annotation{}
	}
	return json.Marshal(m)
}

// ParseMapping decodes a JSON mapping produced by MarshalMapping. Unknown
// status values and trailing data are rejected. A missing hash is filled
// from the key.
func ParseMapping(data []byte) (map[string]Annotation, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var raw map[string]Annotation
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid annotation JSON: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid annotation JSON: trailing data after object")
	}

	out := make(map[string]Annotation, len(raw))
	for id, a := range raw {
		if !a.Status.Valid() {
			return nil, fmt.Errorf("annotation %q: %w: %q", id, ErrInvalidStatus, a.Status)
		}
		if a.Hash == "" {
			a.Hash = id
		}
		out[id] = a
	}
	return out, nil
}

// ExportFilename derives the export file name from a batch name.
func ExportFilename(batchName string) string {
	return security.SanitizeFilename(batchName) + ExportSuffix
}

// Export encodes the subset of s belonging to the given batch identities.
func (s *Store) Export(ids []string) ([]byte, error) {
	return MarshalMapping(s.Subset(ids))
}
