// Package samples decodes fixed-layout sensor trace records into Samples.
package samples

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"github.com/banshee-data/trace.review/internal/fsutil"
)

/*
Trace Record Layout

Each batch file is a bare concatenation of fixed-size records. There is no
file header, footer, or checksum. All numeric fields are little-endian.

RECORD STRUCTURE (9752 bytes total):
├── Identity (8 bytes)   - copied verbatim, hex encoded into Sample.ID
├── Reserved (16 bytes)  - four uint32 channel ids written by the generator; skipped
├── X  (240 × float64)   - timestamps in seconds
├── R1 (240 × float64)   - resistance, channel 1
├── R2 (240 × float64)   - resistance, channel 2
├── V1 (240 × float64)   - voltage, channel 1
└── V2 (240 × float64)   - voltage, channel 2

A trailing partial record is dropped without error. Field values are not
validated: NaN, ±Inf and non-monotonic timestamps pass through untouched.
*/
const (
	PointsPerChannel = 240                                                   // Values per channel in every record
	IdentitySize     = 8                                                     // Leading identity bytes
	ReservedSize     = 16                                                    // Skipped header bytes after the identity
	ChannelCount     = 5                                                     // x, r1, r2, v1, v2
	ChannelSize      = PointsPerChannel * 8                                  // 1920 bytes per float64 channel
	RecordSize       = IdentitySize + ReservedSize + ChannelCount*ChannelSize // 9752 bytes
	payloadOffset    = IdentitySize + ReservedSize                           // First channel byte
)

// ErrDecode is matched by every DecodeError.
var ErrDecode = errors.New("decode failed")

// DecodeError reports that the raw buffer for a batch could not be acquired.
// A buffer that is merely short or empty is never an error.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("could not load buffer: %v", e.Err)
	}
	return fmt.Sprintf("could not load buffer from %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDecode) match any DecodeError.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// RecordCount returns how many whole records fit in n bytes.
func RecordCount(n int) int {
	if n <= 0 {
		return 0
	}
	return n / RecordSize
}

// Decode turns buf into samples in record order. The result is never nil.
func Decode(buf []byte) []Sample {
	count := RecordCount(len(buf))
	out := make([]Sample, 0, count)
	for t := 0; t < count; t++ {
		out = append(out, decodeRecord(buf[t*RecordSize:(t+1)*RecordSize]))
	}
	return out
}

func decodeRecord(rec []byte) Sample {
	s := Sample{ID: hex.EncodeToString(rec[:IdentitySize])}
	offset := payloadOffset
	channels := []*[]float64{&s.X, &s.R1, &s.R2, &s.V1, &s.V2}
	for _, ch := range channels {
		*ch = readChannel(rec[offset : offset+ChannelSize])
		offset += ChannelSize
	}
	return s
}

func readChannel(data []byte) []float64 {
	values := make([]float64, PointsPerChannel)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return values
}

// DecodeReader reads r to EOF and decodes the result. A failed read is
// reported as a *DecodeError and no samples are returned.
func DecodeReader(r io.Reader) ([]Sample, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return Decode(buf), nil
}

// ReadFile acquires path from fsys and decodes it.
func ReadFile(fsys fsutil.FileSystem, path string) ([]Sample, error) {
	buf, err := fsys.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}
	return Decode(buf), nil
}

// Shuffle permutes seq in place with a Fisher-Yates pass. A nil rng uses the
// global source.
func Shuffle(seq []Sample, rng *rand.Rand) {
	swap := func(i, j int) { seq[i], seq[j] = seq[j], seq[i] }
	if rng == nil {
		rand.Shuffle(len(seq), swap)
		return
	}
	rng.Shuffle(len(seq), swap)
}
