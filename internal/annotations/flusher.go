package annotations

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/banshee-data/trace.review/internal/timeutil"
)

// DefaultFlushInterval bounds data loss on abrupt termination.
const DefaultFlushInterval = 30 * time.Second

// Persister is anything that can write its full state to durable storage.
// *Store implements this interface.
type Persister interface {
	Flush(ctx context.Context) error
}

// FlusherConfig contains configuration for Flusher.
type FlusherConfig struct {
	// Store is the Persister to flush (typically a *Store)
	Store Persister
	// Interval is how often to flush; zero uses DefaultFlushInterval
	Interval time.Duration
	// Clock is optional; if nil, uses timeutil.RealClock
	Clock timeutil.Clock
	// Logger is optional; if nil, uses log.Default()
	Logger *log.Logger
}

// FlushStats describes flusher activity for status reporting.
type FlushStats struct {
	Running   bool      `json:"running"`
	Flushes   int       `json:"flushes"`
	Failures  int       `json:"failures"`
	LastFlush time.Time `json:"last_flush"`
	LastError string    `json:"last_error,omitempty"`
}

// Flusher periodically flushes the annotation store to its slot whether or
// not anything changed, and once more on shutdown.
type Flusher struct {
	store    Persister
	interval time.Duration
	clock    timeutil.Clock
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	stats   FlushStats
	lastErr error
}

// NewFlusher creates a new Flusher.
func NewFlusher(cfg FlusherConfig) *Flusher {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Flusher{
		store:    cfg.Store,
		interval: interval,
		clock:    clock,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Interval returns the flush period.
func (f *Flusher) Interval() time.Duration { return f.interval }

// Run starts the periodic flushing loop. It blocks until the context is
// cancelled or Stop() is called, then performs a final flush.
func (f *Flusher) Run(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil // already running
	}
	f.running = true
	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})
	stopCh, doneCh := f.stopCh, f.doneCh
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
		close(doneCh)
	}()

	ticker := f.clock.NewTicker(f.interval)
	defer ticker.Stop()

	f.logger.Printf("Flusher started: interval=%v", f.interval)

	for {
		select {
		case <-ctx.Done():
			f.logger.Printf("Flusher stopping due to context cancellation")
			f.flush(context.WithoutCancel(ctx), "final")
			return nil
		case <-stopCh:
			f.logger.Printf("Flusher stopping due to Stop() call")
			f.flush(context.WithoutCancel(ctx), "final")
			return nil
		case <-ticker.C():
			f.flush(ctx, "periodic")
		}
	}
}

// Stop requests the flusher to stop and waits for the final flush. It is
// safe to call multiple times.
func (f *Flusher) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	select {
	case <-f.stopCh:
		// already closed
	default:
		close(f.stopCh)
	}
	doneCh := f.doneCh
	f.mu.Unlock()

	<-doneCh
}

// IsRunning returns whether the flusher is currently running.
func (f *Flusher) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// FlushNow triggers an immediate flush outside the regular interval and
// returns its error.
func (f *Flusher) FlushNow(ctx context.Context) error {
	return f.flush(ctx, "manual")
}

// Stats returns a snapshot of flusher activity.
func (f *Flusher) Stats() FlushStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stats
	s.Running = f.running
	return s
}

// LastError returns the error of the most recent flush, or nil.
func (f *Flusher) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *Flusher) flush(ctx context.Context, reason string) error {
	if f.store == nil {
		return nil
	}
	err := f.store.Flush(ctx)

	f.mu.Lock()
	f.lastErr = err
	if err != nil {
		f.stats.Failures++
		f.stats.LastError = err.Error()
	} else {
		f.stats.Flushes++
		f.stats.LastFlush = f.clock.Now()
		f.stats.LastError = ""
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.Printf("Flusher: %s flush failed: %v", reason, err)
	} else {
		f.logger.Printf("Flusher: %s flush saved annotations", reason)
	}
	return err
}
