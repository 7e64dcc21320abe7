// Package weather aligns a daily precipitation series with a sample's time
// axis. Fetching the series is left to the operator; it is read from a local
// JSON file in the Open-Meteo "daily" shape.
package weather

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"sort"
	"time"

	"github.com/banshee-data/trace.review/internal/fsutil"
)

// DefaultWindowDays is how far past a sample's first timestamp precipitation
// is shown.
const DefaultWindowDays = 30

const secondsPerDay = 86400

// Day is one entry of the daily series. Missing values are NaN.
type Day struct {
	Time     time.Time
	Rain     float64
	Snowfall float64
}

// Series is a daily precipitation series ordered by time.
type Series struct {
	Days []Day
}

// Point is a day aligned to a sample: Day is the offset in days from the
// sample's first timestamp.
type Point struct {
	Day      float64 `json:"day"`
	Rain     float64 `json:"rain"`
	Snowfall float64 `json:"snowfall"`
}

type dailyFile struct {
	Daily struct {
		Time        []string   `json:"time"`
		RainSum     []*float64 `json:"rain_sum"`
		SnowfallSum []*float64 `json:"snowfall_sum"`
	} `json:"daily"`
}

// layouts accepted for daily timestamps. Date-only values are midnight UTC.
var layouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04"}

func parseTime(v string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", v)
}

func value(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return math.NaN()
	}
	return *vals[i]
}

// ParseDaily decodes a {"daily":{"time":[...],"rain_sum":[...],"snowfall_sum":[...]}}
// document. rain_sum must be as long as time; snowfall_sum is optional.
func ParseDaily(data []byte) (*Series, error) {
	var f dailyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse weather JSON: %w", err)
	}
	d := f.Daily
	if len(d.RainSum) != len(d.Time) {
		return nil, fmt.Errorf("weather JSON has %d dates but %d rain values", len(d.Time), len(d.RainSum))
	}

	s := &Series{Days: make([]Day, 0, len(d.Time))}
	for i, ts := range d.Time {
		t, err := parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("weather JSON entry %d: %w", i, err)
		}
		s.Days = append(s.Days, Day{Time: t, Rain: value(d.RainSum, i), Snowfall: value(d.SnowfallSum, i)})
	}
	sort.SliceStable(s.Days, func(i, j int) bool { return s.Days[i].Time.Before(s.Days[j].Time) })
	return s, nil
}

// Load reads a series from path. A missing file yields an empty series.
func Load(fsys fsutil.FileSystem, path string) (*Series, error) {
	if path == "" {
		return &Series{}, nil
	}
	data, err := fsys.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Series{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read weather file: %w", err)
	}
	return ParseDaily(data)
}

// Len returns the number of days in the series.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Days)
}

// Window returns the days whose offset from start (unix seconds) lies in
// [0, days], with missing rain values left out. A nil series or a
// non-finite start yields nil.
func (s *Series) Window(start float64, days float64) []Point {
	if s == nil || math.IsNaN(start) || math.IsInf(start, 0) {
		return nil
	}
	var out []Point
	for _, d := range s.Days {
		offset := (float64(d.Time.Unix()) - start) / secondsPerDay
		if offset < 0 || offset > days || math.IsNaN(d.Rain) {
			continue
		}
		snow := d.Snowfall
		if math.IsNaN(snow) {
			snow = 0
		}
		out = append(out, Point{Day: offset, Rain: d.Rain, Snowfall: snow})
	}
	return out
}
