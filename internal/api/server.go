// Package api exposes the review session and annotation store over a small
// JSON HTTP interface. Every handler raises one operator event on the
// controller and returns the resulting view.
package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/banshee-data/trace.review/internal/annotations"
	"github.com/banshee-data/trace.review/internal/httputil"
	"github.com/banshee-data/trace.review/internal/review"
	"github.com/banshee-data/trace.review/internal/samples"
	"github.com/banshee-data/trace.review/internal/version"
)

// DefaultMaxUploadBytes caps a batch upload (about 27k records).
const DefaultMaxUploadBytes = 256 << 20

// maxEventBodyBytes caps JSON bodies of session events.
const maxEventBodyBytes = 4 << 10

// Config configures a Server.
type Config struct {
	Controller *review.Controller
	// Flusher is optional; when nil, flush requests write the store directly.
	Flusher        *annotations.Flusher
	MaxUploadBytes int64
	// AdminRoutes, when set, mounts extra debug routes on the mux.
	AdminRoutes func(mux *http.ServeMux) error
	// Logger receives request logs; nil uses log.Default().
	Logger *log.Logger
}

// Server serves the operator API.
type Server struct {
	ctrl        *review.Controller
	store       *annotations.Store
	flusher     *annotations.Flusher
	maxUpload   int64
	adminRoutes func(mux *http.ServeMux) error
	logger      *log.Logger
	started     time.Time
}

// NewServer creates a Server.
func NewServer(cfg Config) *Server {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Server{
		ctrl:        cfg.Controller,
		store:       cfg.Controller.Store(),
		flusher:     cfg.Flusher,
		maxUpload:   maxUpload,
		adminRoutes: cfg.AdminRoutes,
		logger:      cfg.Logger,
		started:     time.Now(),
	}
}

// ServeMux returns the routes without middleware.
func (s *Server) ServeMux() (*http.ServeMux, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/batches", s.loadBatch)
	mux.HandleFunc("GET /api/session", s.showSession)
	mux.HandleFunc("POST /api/session/label", s.setLabel)
	mux.HandleFunc("POST /api/session/moisture", s.setMoisture)
	mux.HandleFunc("POST /api/session/confirm", s.confirm)
	mux.HandleFunc("POST /api/session/back", s.stepBack)
	mux.HandleFunc("POST /api/session/jump", s.jump)
	mux.HandleFunc("GET /api/export", s.export)
	mux.HandleFunc("GET /api/annotations", s.listAnnotations)
	mux.HandleFunc("POST /api/annotations/flush", s.flush)
	mux.HandleFunc("POST /api/annotations/reset", s.acceptReset)
	mux.HandleFunc("GET /api/status", s.status)

	if s.adminRoutes != nil {
		if err := s.adminRoutes(mux); err != nil {
			return nil, fmt.Errorf("failed to attach admin routes: %w", err)
		}
	}
	return mux, nil
}

// Handler returns the routes wrapped in request logging.
func (s *Server) Handler() (http.Handler, error) {
	mux, err := s.ServeMux()
	if err != nil {
		return nil, err
	}
	return LoggingMiddleware(s.logger, mux), nil
}

// EventResponse reports whether an operator event changed the session, with
// the view after it.
type EventResponse struct {
	Applied bool        `json:"applied"`
	View    review.View `json:"view"`
}

func (s *Server) apply(w http.ResponseWriter, e review.Event) {
	applied := s.ctrl.Apply(e)
	httputil.WriteJSONOK(w, EventResponse{Applied: applied, View: s.ctrl.View()})
}

func (s *Server) loadBatch(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		httputil.BadRequest(w, "missing 'name' query parameter")
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.maxUpload)
	_, err := s.ctrl.Load(r.Context(), name, body)
	switch {
	case errors.Is(err, review.ErrSuperseded):
		httputil.Conflict(w, err.Error())
		return
	case errors.Is(err, samples.ErrDecode):
		httputil.BadRequest(w, err.Error())
		return
	case err != nil:
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, s.ctrl.View())
}

func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.ctrl.View())
}

type labelRequest struct {
	Status string `json:"status"`
}

func (s *Server) setLabel(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := httputil.DecodeJSONBody(r, &req, maxEventBodyBytes); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	status, err := annotations.ParseStatus(req.Status)
	if err != nil || status == annotations.StatusNone {
		httputil.BadRequest(w, fmt.Sprintf("status must be one of pass, observe, fail, checksum; got %q", req.Status))
		return
	}
	s.apply(w, review.SetLabel{Status: status})
}

type moistureRequest struct {
	IsDry *bool `json:"is_dry"`
}

// setMoisture toggles the staged flag, or sets it when the body names one.
func (s *Server) setMoisture(w http.ResponseWriter, r *http.Request) {
	var req moistureRequest
	err := httputil.DecodeJSONBody(r, &req, maxEventBodyBytes)
	switch {
	case errors.Is(err, httputil.ErrEmptyBody):
		s.apply(w, review.ToggleMoisture{})
	case err != nil:
		httputil.BadRequest(w, err.Error())
	case req.IsDry == nil:
		s.apply(w, review.ToggleMoisture{})
	default:
		s.apply(w, review.SetMoisture{IsDry: *req.IsDry})
	}
}

func (s *Server) confirm(w http.ResponseWriter, r *http.Request) {
	s.apply(w, review.Confirm{})
}

func (s *Server) stepBack(w http.ResponseWriter, r *http.Request) {
	s.apply(w, review.StepBack{})
}

type jumpRequest struct {
	Index *int `json:"index"`
}

// jump clamps the requested index to the batch before jumping, as manual
// index entry does.
func (s *Server) jump(w http.ResponseWriter, r *http.Request) {
	var req jumpRequest
	if err := httputil.DecodeJSONBody(r, &req, maxEventBodyBytes); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.Index == nil {
		httputil.BadRequest(w, "missing 'index'")
		return
	}
	s.apply(w, review.JumpNearest{Index: *req.Index})
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	filename, data, err := s.ctrl.Export()
	if errors.Is(err, review.ErrNoBatch) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteAttachment(w, filename, annotations.ExportContentType, data)
}

func (s *Server) listAnnotations(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.store.All())
}

func (s *Server) flush(w http.ResponseWriter, r *http.Request) {
	var err error
	if s.flusher != nil {
		err = s.flusher.FlushNow(r.Context())
	} else {
		err = s.store.Flush(r.Context())
	}
	if errors.Is(err, annotations.ErrQuarantined) {
		httputil.Conflict(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"flushed": true, "annotations": s.store.Len()})
}

// ResetResponse names the slot the malformed content was copied to.
type ResetResponse struct {
	Backup string `json:"backup,omitempty"`
}

func (s *Server) acceptReset(w http.ResponseWriter, r *http.Request) {
	backup, err := s.store.AcceptReset(r.Context())
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, ResetResponse{Backup: backup})
}

// StatusResponse describes the running service.
type StatusResponse struct {
	Version          string                  `json:"version"`
	GitSHA           string                  `json:"git_sha"`
	UptimeSeconds    float64                 `json:"uptime_seconds"`
	SlotName         string                  `json:"slot_name"`
	StoreQuarantined bool                    `json:"store_quarantined"`
	Annotations      int                     `json:"annotations"`
	Batch            review.Batch            `json:"batch"`
	Flush            *annotations.FlushStats `json:"flush,omitempty"`
	FlushInterval    string                  `json:"flush_interval,omitempty"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:          version.Version,
		GitSHA:           version.GitSHA,
		UptimeSeconds:    time.Since(s.started).Seconds(),
		SlotName:         s.store.SlotName(),
		StoreQuarantined: s.store.Quarantined(),
		Annotations:      s.store.Len(),
		Batch:            s.ctrl.Batch(),
	}
	if s.flusher != nil {
		stats := s.flusher.Stats()
		resp.Flush = &stats
		resp.FlushInterval = s.flusher.Interval().String()
	}
	httputil.WriteJSONOK(w, resp)
}
