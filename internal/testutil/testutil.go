// Package testutil provides shared test helpers and fixtures: encoded trace
// batches and HTTP assertions.
//
// It must not be imported by package samples' own tests, which encode
// records by hand.
package testutil

import (
	"encoding/binary"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/trace.review/internal/samples"
)

// Channels holds the five channel values of one record. Nil channels encode
// as zeros; values beyond samples.PointsPerChannel are ignored.
type Channels struct {
	X, R1, R2, V1, V2 []float64
}

// EncodeRecord encodes one record. The identity is written big-endian so
// that id 1 decodes to "0000000000000001".
func EncodeRecord(id uint64, ch Channels) []byte {
	rec := make([]byte, samples.RecordSize)
	binary.BigEndian.PutUint64(rec[:samples.IdentitySize], id)
	off := samples.IdentitySize + samples.ReservedSize
	for _, values := range [][]float64{ch.X, ch.R1, ch.R2, ch.V1, ch.V2} {
		for i := 0; i < samples.PointsPerChannel && i < len(values); i++ {
			binary.LittleEndian.PutUint64(rec[off+i*8:], math.Float64bits(values[i]))
		}
		off += samples.ChannelSize
	}
	return rec
}

// HourlyX returns a timestamp channel of hourly steps from start.
func HourlyX(start float64) []float64 {
	x := make([]float64, samples.PointsPerChannel)
	for i := range x {
		x[i] = start + float64(i)*3600
	}
	return x
}

// EncodeBatch returns n records with identities 1..n, hourly timestamps
// from start and zero measurements.
func EncodeBatch(n int, start float64) []byte {
	buf := make([]byte, 0, n*samples.RecordSize)
	x := HourlyX(start)
	for r := range n {
		buf = append(buf, EncodeRecord(uint64(r+1), Channels{X: x})...)
	}
	return buf
}

// WriteBatch writes EncodeBatch(n, 0) to dir/name and returns the path.
func WriteBatch(t testing.TB, dir, name string, n int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, EncodeBatch(n, 0), 0o644); err != nil {
		t.Fatalf("failed to write batch: %v", err)
	}
	return path
}

// Serve runs one request against h and returns the recorder.
func Serve(h http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Errorf("status code = %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
