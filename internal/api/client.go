package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/banshee-data/trace.review/internal/annotations"
	"github.com/banshee-data/trace.review/internal/httputil"
	"github.com/banshee-data/trace.review/internal/review"
)

// Client talks to a running trace-review server.
type Client struct {
	base string
	http httputil.HTTPClient
}

// NewClient returns a client for the server at baseURL. A nil hc uses
// http.DefaultClient.
func NewClient(baseURL string, hc httputil.HTTPClient) *Client {
	if hc == nil {
		hc = httputil.NewStandardClient(nil)
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	resp, err := c.do(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Status fetches /api/status.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var s StatusResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/status", nil, &s)
	return s, err
}

// Session fetches the current view.
func (c *Client) Session(ctx context.Context) (review.View, error) {
	var v review.View
	err := c.doJSON(ctx, http.MethodGet, "/api/session", nil, &v)
	return v, err
}

// Upload sends a raw batch file to be decoded and installed.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (review.View, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/batches?name="+url.QueryEscape(name), "application/octet-stream", r)
	if err != nil {
		return review.View{}, err
	}
	defer resp.Body.Close()
	var v review.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return review.View{}, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return v, nil
}

// Send raises one operator event on the server.
func (c *Client) Send(ctx context.Context, e review.Event) (EventResponse, error) {
	var (
		path string
		body interface{}
	)
	switch ev := e.(type) {
	case review.Confirm:
		path = "/api/session/confirm"
	case review.StepBack:
		path = "/api/session/back"
	case review.ToggleMoisture:
		path = "/api/session/moisture"
	case review.SetMoisture:
		path, body = "/api/session/moisture", moistureRequest{IsDry: &ev.IsDry}
	case review.SetLabel:
		path, body = "/api/session/label", labelRequest{Status: string(ev.Status)}
	case review.JumpTo:
		path, body = "/api/session/jump", jumpRequest{Index: &ev.Index}
	case review.JumpNearest:
		path, body = "/api/session/jump", jumpRequest{Index: &ev.Index}
	default:
		return EventResponse{}, fmt.Errorf("unsupported event %T", e)
	}
	var out EventResponse
	err := c.doJSON(ctx, http.MethodPost, path, body, &out)
	return out, err
}

// Flush asks the server to write the store to its slot now.
func (c *Client) Flush(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/annotations/flush", nil, nil)
}

// AcceptReset accepts a quarantined store on the server and returns the
// backup slot name.
func (c *Client) AcceptReset(ctx context.Context) (string, error) {
	var r ResetResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/annotations/reset", nil, &r)
	return r.Backup, err
}

// Export downloads the current batch export. The filename comes from the
// Content-Disposition header.
func (c *Client) Export(ctx context.Context) (string, []byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/export", "", nil)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read export: %w", err)
	}
	filename := annotations.ExportFilename("")
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return filename, data, nil
}
