package commands

import (
	"bytes"
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trace.review/internal/annotations"
	"github.com/banshee-data/trace.review/internal/api"
	"github.com/banshee-data/trace.review/internal/printer"
	"github.com/banshee-data/trace.review/internal/review"
	"github.com/banshee-data/trace.review/internal/slots"
	"github.com/banshee-data/trace.review/internal/testutil"
)

// A confirm still in flight when shutdown begins must land in the slot.
func TestServe_FinalFlushCoversInFlightConfirm(t *testing.T) {
	mem := slots.NewMemory()
	store := annotations.NewStore(mem, "")
	ctrl := review.NewController(review.ControllerConfig{Store: store})
	_, err := ctrl.Load(context.Background(), "site_a", bytes.NewReader(testutil.EncodeBatch(1, 0)))
	require.NoError(t, err)
	require.True(t, ctrl.Apply(review.SetLabel{Status: annotations.StatusPass}))

	discard := log.New(io.Discard, "", 0)
	flusher := annotations.NewFlusher(annotations.FlusherConfig{
		Store:    store,
		Interval: time.Hour,
		Logger:   discard,
	})
	inner, err := api.NewServer(api.Config{Controller: ctrl, Flusher: flusher, Logger: discard}).Handler()
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/session/confirm" {
			close(started)
			<-release
		}
		inner.ServeHTTP(w, r)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var out bytes.Buffer
	a := &app{out: &printer.Printer{Out: &out, Err: &out}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- a.serveListener(ctx, ln, handler, flusher) }()

	confirmed := make(chan int, 1)
	go func() {
		resp, err := http.Post("http://"+ln.Addr().String()+"/api/session/confirm", "application/json", nil)
		if err != nil {
			confirmed <- 0
			return
		}
		resp.Body.Close()
		confirmed <- resp.StatusCode
	}()

	<-started
	cancel()
	// Let shutdown begin while the confirm is still blocked.
	time.Sleep(50 * time.Millisecond)
	close(release)

	assert.Equal(t, http.StatusOK, <-confirmed)
	require.NoError(t, <-served)

	data, found, err := mem.Read(context.Background(), annotations.DefaultSlotName)
	require.NoError(t, err)
	require.True(t, found, "slot was never written")
	entries, err := annotations.ParseMapping(data)
	require.NoError(t, err)
	require.Contains(t, entries, "0000000000000001")
	assert.Equal(t, annotations.StatusPass, entries["0000000000000001"].Status)
}
