package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/trace.review/internal/annotations"
	"github.com/banshee-data/trace.review/internal/monitoring"
	"github.com/banshee-data/trace.review/internal/samples"
	"github.com/banshee-data/trace.review/internal/weather"
)

// ErrSuperseded is returned by Load when a newer load was started while this
// one was decoding. The stale batch is discarded.
var ErrSuperseded = errors.New("load superseded by a newer batch")

// ErrNoBatch is returned by Export when nothing is loaded.
var ErrNoBatch = errors.New("no batch loaded")

// Ticket identifies one load attempt. Only the most recently issued ticket
// may install its batch.
type Ticket uint64

// Batch describes the installed batch.
type Batch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	Store *annotations.Store
	// Weather is optional precipitation data shown alongside each sample.
	Weather *weather.Series
	// WindowDays defaults to weather.DefaultWindowDays.
	WindowDays float64
	// Shuffle randomises each loaded batch.
	Shuffle bool
	// Rand is used for shuffling; nil uses the global source.
	Rand *rand.Rand
}

// Controller serialises operator events over a Session and the shared
// annotation store, and guards batch installation with a generation counter
// so a slow decode can never overwrite a newer batch.
type Controller struct {
	mu         sync.Mutex
	store      *annotations.Store
	session    *Session
	batch      Batch
	generation Ticket

	weather    *weather.Series
	windowDays float64
	shuffle    bool
	rng        *rand.Rand
}

// NewController returns a controller with an Empty session.
func NewController(cfg ControllerConfig) *Controller {
	days := cfg.WindowDays
	if days <= 0 {
		days = weather.DefaultWindowDays
	}
	return &Controller{
		store:      cfg.Store,
		session:    NewSession(cfg.Store),
		weather:    cfg.Weather,
		windowDays: days,
		shuffle:    cfg.Shuffle,
		rng:        cfg.Rand,
	}
}

// Store returns the annotation store.
func (c *Controller) Store() *annotations.Store { return c.store }

// BeginLoad issues a ticket, superseding every earlier one.
func (c *Controller) BeginLoad() Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.generation
}

// CompleteLoad installs seq under name if t is still the latest ticket and
// reports whether it did.
func (c *Controller) CompleteLoad(t Ticket, name string, seq []samples.Sample) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t != c.generation {
		monitoring.Logf("discarding stale batch %q (ticket %d, latest %d)", name, t, c.generation)
		return false
	}
	if c.shuffle {
		samples.Shuffle(seq, c.rng)
	}
	c.batch = Batch{ID: uuid.NewString(), Name: name}
	c.session.Load(seq)
	monitoring.Logf("Loaded batch %q: %d samples, cursor=%d", name, len(seq), c.session.Cursor())
	return true
}

// Load decodes r and installs the result as batch name. Decoding runs without
// holding the lock. A decode failure leaves the current session untouched;
// a load overtaken by a newer one returns ErrSuperseded.
func (c *Controller) Load(ctx context.Context, name string, r io.Reader) (Batch, error) {
	t := c.BeginLoad()
	seq, err := samples.DecodeReader(r)
	if err != nil {
		return Batch{}, fmt.Errorf("failed to load batch %q: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	if !c.CompleteLoad(t, name, seq) {
		return Batch{}, ErrSuperseded
	}
	return c.Batch(), nil
}

// Batch returns the installed batch, zero when none.
func (c *Controller) Batch() Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batch
}

// Apply runs one operator event and reports whether it changed anything.
func (c *Controller) Apply(e Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return e.apply(c.session)
}

// View is a presentation snapshot of the session.
type View struct {
	Batch         Batch                   `json:"batch"`
	State         string                  `json:"state"`
	Cursor        int                     `json:"cursor"`
	Len           int                     `json:"len"`
	Annotated     int                     `json:"annotated"`
	Sample        *samples.Sample         `json:"sample,omitempty"`
	Summary       *samples.Summary        `json:"summary,omitempty"`
	Staged        Judgment                `json:"staged"`
	Committed     *annotations.Annotation `json:"committed,omitempty"`
	Precipitation []weather.Point         `json:"precipitation,omitempty"`
}

// View returns a snapshot of the session for display.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	v := View{
		Batch:  c.batch,
		State:  s.State().String(),
		Cursor: s.Cursor(),
		Len:    s.Len(),
		Staged: s.Staged(),
	}
	v.Annotated = len(c.store.Subset(c.batchIDs()))
	if cur, ok := s.Current(); ok {
		v.Sample = &cur
		sum := samples.Summarize(cur)
		v.Summary = &sum
		v.Precipitation = c.weather.Window(cur.Start(), c.windowDays)
	}
	if a, ok := s.Committed(); ok {
		v.Committed = &a
	}
	return v
}

// Export returns the export filename and the JSON mapping of annotations for
// the samples in the loaded batch.
func (c *Controller) Export() (string, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.batch.ID == "" {
		return "", nil, ErrNoBatch
	}
	data, err := c.store.Export(c.batchIDs())
	if err != nil {
		return "", nil, fmt.Errorf("failed to export batch %q: %w", c.batch.Name, err)
	}
	return annotations.ExportFilename(c.batch.Name), data, nil
}

func (c *Controller) batchIDs() []string {
	seq := c.session.Sequence()
	ids := make([]string, len(seq))
	for i, s := range seq {
		ids[i] = s.ID
	}
	return ids
}
