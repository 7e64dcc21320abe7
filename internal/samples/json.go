package samples

import (
	"encoding/json"
	"math"
)

// JSON has no representation for NaN or ±Inf. Non-finite values are encoded
// as null and decoded back as NaN, so a sample carrying them still reaches
// HTTP clients intact apart from the sign of an infinity.

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func finiteSlice(vs []float64) []*float64 {
	if vs == nil {
		return nil
	}
	out := make([]*float64, len(vs))
	for i, v := range vs {
		out[i] = finite(v)
	}
	return out
}

func nanSlice(ps []*float64) []float64 {
	if ps == nil {
		return nil
	}
	out := make([]float64, len(ps))
	for i, p := range ps {
		out[i] = orNaN(p)
	}
	return out
}

type sampleJSON struct {
	ID string     `json:"hash"`
	X  []*float64 `json:"x"`
	R1 []*float64 `json:"r1"`
	R2 []*float64 `json:"r2"`
	V1 []*float64 `json:"v1"`
	V2 []*float64 `json:"v2"`
}

// MarshalJSON encodes non-finite channel values as null.
func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleJSON{
		ID: s.ID,
		X:  finiteSlice(s.X),
		R1: finiteSlice(s.R1),
		R2: finiteSlice(s.R2),
		V1: finiteSlice(s.V1),
		V2: finiteSlice(s.V2),
	})
}

// UnmarshalJSON decodes null channel values as NaN.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var w sampleJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Sample{
		ID: w.ID,
		X:  nanSlice(w.X),
		R1: nanSlice(w.R1),
		R2: nanSlice(w.R2),
		V1: nanSlice(w.V1),
		V2: nanSlice(w.V2),
	}
	return nil
}

type channelStatsJSON struct {
	Min  *float64 `json:"min"`
	Max  *float64 `json:"max"`
	Mean *float64 `json:"mean"`
}

// MarshalJSON encodes non-finite statistics as null.
func (c ChannelStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(channelStatsJSON{Min: finite(c.Min), Max: finite(c.Max), Mean: finite(c.Mean)})
}

// UnmarshalJSON decodes null statistics as NaN.
func (c *ChannelStats) UnmarshalJSON(data []byte) error {
	var w channelStatsJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = ChannelStats{Min: orNaN(w.Min), Max: orNaN(w.Max), Mean: orNaN(w.Mean)}
	return nil
}

// MarshalJSON encodes a non-finite span as null.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	return json.Marshal(struct {
		plain
		SpanDays *float64 `json:"span_days"`
	}{plain: plain(s), SpanDays: finite(s.SpanDays)})
}

// UnmarshalJSON decodes a null span as NaN.
func (s *Summary) UnmarshalJSON(data []byte) error {
	type plain Summary
	aux := struct {
		*plain
		SpanDays *float64 `json:"span_days"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.SpanDays = orNaN(aux.SpanDays)
	return nil
}
