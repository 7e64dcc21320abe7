// Package printer formats trace-review command output with colour.
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"

	"github.com/banshee-data/trace.review/internal/annotations"
	"github.com/banshee-data/trace.review/internal/review"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

// Printer writes messages to Out and errors to Err.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// New returns a Printer on stdout and stderr.
func New() *Printer {
	return &Printer{Out: os.Stdout, Err: os.Stderr}
}

// Success prints a message in green with a checkmark prefix.
func (p *Printer) Success(format string, a ...any) {
	green.Fprintf(p.Out, "✓ %s", fmt.Sprintf(format, a...))
}

// Info prints a message in the default colour.
func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintf(p.Out, format, a...)
}

// Warning prints a message in yellow.
func (p *Printer) Warning(format string, a ...any) {
	yellow.Fprintf(p.Err, "⚠️  %s", fmt.Sprintf(format, a...))
}

// Step prints a progress message.
func (p *Printer) Step(format string, a ...any) {
	cyan.Fprintf(p.Out, "→ %s", fmt.Sprintf(format, a...))
}

// Error prints a title, an explanation and numbered suggestions to Err and
// returns an error carrying only the title, for cobra to exit with.
func (p *Printer) Error(title, explanation string, suggestions []string) error {
	return p.ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value details printed in key order.
func (p *Printer) ErrorWithContext(title, explanation string, details map[string]string, suggestions []string) error {
	red.Fprintf(p.Err, "%s\n\n", title)
	if explanation != "" {
		fmt.Fprintf(p.Err, "%s\n", explanation)
	}

	if len(details) > 0 {
		keys := make([]string, 0, len(details))
		for k := range details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(p.Err)
		for _, k := range keys {
			fmt.Fprintf(p.Err, "  %s: %s\n", k, details[k])
		}
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(p.Err, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(p.Err, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(p.Err, "  %d. %s\n", i+1, s)
		}
	}
	return fmt.Errorf("%s", title)
}

func statusColor(s annotations.Status) *color.Color {
	switch s {
	case annotations.StatusPass:
		return green
	case annotations.StatusObserve:
		return yellow
	case annotations.StatusFail:
		return red
	case annotations.StatusChecksum:
		return cyan
	default:
		return color.New(color.Faint)
	}
}

func moisture(isDry bool) string {
	if isDry {
		return "dry"
	}
	return "wet"
}

// View renders the session view shown between key presses.
func (p *Printer) View(v review.View) {
	if v.State != review.Active.String() || v.Sample == nil {
		p.Info("no batch loaded\n")
		return
	}

	bold.Fprintf(p.Out, "[%d/%d] %s", v.Cursor+1, v.Len, v.Sample.ID)
	fmt.Fprintf(p.Out, "  (%d annotated)\n", v.Annotated)

	if s := v.Summary; s != nil {
		fmt.Fprintf(p.Out, "  span %.1f days\n", s.SpanDays)
		rows := []struct {
			name     string
			min, max float64
			mean     float64
		}{
			{"r1", s.R1.Min, s.R1.Max, s.R1.Mean},
			{"r2", s.R2.Min, s.R2.Max, s.R2.Mean},
			{"v1", s.V1.Min, s.V1.Max, s.V1.Mean},
			{"v2", s.V2.Min, s.V2.Max, s.V2.Mean},
		}
		for _, r := range rows {
			fmt.Fprintf(p.Out, "  %s  min %9.3f  max %9.3f  mean %9.3f\n", r.name, r.min, r.max, r.mean)
		}
	}

	if len(v.Precipitation) > 0 {
		var rain, snow float64
		for _, pt := range v.Precipitation {
			rain += pt.Rain
			snow += pt.Snowfall
		}
		fmt.Fprintf(p.Out, "  precipitation: %d days, rain %.1f mm, snow %.1f cm\n", len(v.Precipitation), rain, snow)
	}

	if c := v.Committed; c != nil {
		fmt.Fprintf(p.Out, "  committed: ")
		statusColor(c.Status).Fprint(p.Out, c.Status.Display())
		fmt.Fprintf(p.Out, " (%s)\n", moisture(c.IsDry))
	}

	fmt.Fprintf(p.Out, "  staged:    ")
	statusColor(v.Staged.Status).Fprint(p.Out, v.Staged.Status.Display())
	fmt.Fprintf(p.Out, " (%s)\n", moisture(v.Staged.IsDry))
}

// Annotations prints a mapping sorted by identity.
func (p *Printer) Annotations(m map[string]annotations.Annotation) {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a := m[id]
		fmt.Fprintf(p.Out, "%s  ", id)
		statusColor(a.Status).Fprintf(p.Out, "%-8s", a.Status.Display())
		fmt.Fprintf(p.Out, "  %s\n", moisture(a.IsDry))
	}
	if len(ids) == 0 {
		p.Info("no annotations\n")
	}
}
