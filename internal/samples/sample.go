package samples

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const secondsPerDay = 86400

// Sample is one decoded recording. Channels are index-aligned with X.
type Sample struct {
	ID string    `json:"hash"`
	X  []float64 `json:"x"`
	R1 []float64 `json:"r1"`
	R2 []float64 `json:"r2"`
	V1 []float64 `json:"v1"`
	V2 []float64 `json:"v2"`
}

// Start returns the first timestamp, or NaN for a sample with no points.
func (s Sample) Start() float64 {
	if len(s.X) == 0 {
		return math.NaN()
	}
	return s.X[0]
}

// Days projects X onto days elapsed since the first timestamp.
func (s Sample) Days() []float64 {
	out := make([]float64, len(s.X))
	if len(s.X) == 0 {
		return out
	}
	x0 := s.X[0]
	for i, x := range s.X {
		out[i] = (x - x0) / secondsPerDay
	}
	return out
}

// ChannelStats summarises one channel.
type ChannelStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// Summary holds per-channel statistics and the time span of a sample.
type Summary struct {
	ID       string       `json:"hash"`
	SpanDays float64      `json:"span_days"`
	R1       ChannelStats `json:"r1"`
	R2       ChannelStats `json:"r2"`
	V1       ChannelStats `json:"v1"`
	V2       ChannelStats `json:"v2"`
}

// Summarize computes min/max/mean for each measurement channel.
func Summarize(s Sample) Summary {
	sum := Summary{
		ID: s.ID,
		R1: channelStats(s.R1),
		R2: channelStats(s.R2),
		V1: channelStats(s.V1),
		V2: channelStats(s.V2),
	}
	if n := len(s.X); n > 0 {
		sum.SpanDays = (s.X[n-1] - s.X[0]) / secondsPerDay
	}
	return sum
}

func channelStats(values []float64) ChannelStats {
	if len(values) == 0 {
		nan := math.NaN()
		return ChannelStats{Min: nan, Max: nan, Mean: nan}
	}
	return ChannelStats{
		Min:  floats.Min(values),
		Max:  floats.Max(values),
		Mean: stat.Mean(values, nil),
	}
}
