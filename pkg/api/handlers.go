package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wirecache/wirecache/pkg/lifecycle"
	"github.com/wirecache/wirecache/pkg/strategy"
	"github.com/wirecache/wirecache/pkg/update"
	"github.com/wirecache/wirecache/pkg/worker"
)

// handler holds the worker behind the control surface.
type handler struct {
	worker *worker.Worker
}

func newHandler(w *worker.Worker) *handler {
	return &handler{worker: w}
}

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful; on failure a 400 response is already written.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("Invalid request body"))
		return false
	}
	return true
}

// ============================================================================
// Health
// ============================================================================

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK if the server process is running. Designed for liveness
// probes and succeeds as long as the HTTP server is responsive.
func (h *handler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "wirecache",
	}))
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 200 OK once a worker version has been activated and is answering
// intercepted requests, 503 Service Unavailable before that.
func (h *handler) Readiness(w http.ResponseWriter, r *http.Request) {
	active := h.worker.Coordinator().Active()
	if active == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no active worker version"))
		return
	}
	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"version": active.Version(),
		"state":   active.State().String(),
	}))
}

// ============================================================================
// Status
// ============================================================================

// StatusData describes the worker for GET /v1/status.
type StatusData struct {
	WorkerID        string `json:"worker_id"`
	State           string `json:"state"`
	Version         int    `json:"version"`
	ActiveVersion   int    `json:"active_version,omitempty"`
	UpdatePolicy    string `json:"update_policy"`
	UpdateAvailable bool   `json:"update_available"`
	Offline         bool   `json:"offline"`
	QueueDepth      int64  `json:"queue_depth"`
}

// Status handles GET /v1/status.
func (h *handler) Status(w http.ResponseWriter, r *http.Request) {
	depth, err := h.worker.QueueDepth(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse("Failed to read queue depth"))
		return
	}

	data := StatusData{
		WorkerID:        h.worker.ID().String(),
		State:           h.worker.Lifecycle().State().String(),
		Version:         h.worker.Lifecycle().Version(),
		UpdatePolicy:    string(h.worker.Coordinator().Policy()),
		UpdateAvailable: h.worker.Coordinator().HasUpdateAvailable(),
		Offline:         h.worker.Offline(),
		QueueDepth:      depth,
	}
	if active := h.worker.Coordinator().Active(); active != nil {
		data.ActiveVersion = active.Version()
	}

	writeJSON(w, http.StatusOK, okResponse(data))
}

// ============================================================================
// Messages
// ============================================================================

// Message handles POST /v1/message - the typed control message channel.
func (h *handler) Message(w http.ResponseWriter, r *http.Request) {
	var msg worker.Message
	if !decodeJSONBody(w, r, &msg) {
		return
	}

	evt := &worker.Event{Kind: worker.EventMessage, Message: &msg}
	if err := h.worker.Dispatch(r.Context(), evt); err != nil {
		switch {
		case errors.Is(err, worker.ErrUnknownMessageType):
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		case errors.Is(err, lifecycle.ErrInvalidTransition), errors.Is(err, update.ErrNoUpdateAvailable):
			writeJSON(w, http.StatusConflict, errorResponse(err.Error()))
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		}
		return
	}
	evt.Wait()

	writeJSON(w, http.StatusOK, okResponse(evt.Reply))
}

// ============================================================================
// Fetch
// ============================================================================

// FetchRequest is an intercepted request submitted over the API.
type FetchRequest struct {
	Method      string              `json:"method"`
	URL         string              `json:"url"`
	Headers     map[string][]string `json:"headers,omitempty"`
	Body        []byte              `json:"body,omitempty"`
	Destination string              `json:"destination,omitempty"`
}

// FetchResponse is the worker's answer to an intercepted request.
type FetchResponse struct {
	Status  int                 `json:"status"`
	Headers map[string][]string `json:"headers,omitempty"`
	Body    []byte              `json:"body,omitempty"`
	Source  string              `json:"source,omitempty"`
	Stale   bool                `json:"stale,omitempty"`
}

// Fetch handles POST /v1/fetch - the interception boundary.
func (h *handler) Fetch(w http.ResponseWriter, r *http.Request) {
	var req FetchRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("url is required"))
		return
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	resp, err := h.worker.Fetch(r.Context(), &strategy.Request{
		Method:      req.Method,
		URL:         req.URL,
		Headers:     req.Headers,
		Body:        req.Body,
		Destination: strategy.Destination(req.Destination),
	})
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, okResponse(FetchResponse{
		Status:  resp.Status,
		Headers: resp.Headers,
		Body:    resp.Body,
		Source:  resp.Headers.Get(worker.HeaderSource),
		Stale:   resp.Headers.Get(worker.HeaderStale) == "true",
	}))
}

// ============================================================================
// Replay / connectivity
// ============================================================================

// ReplayRequest names the queue to replay. An empty tag means the default
// queue.
type ReplayRequest struct {
	Tag string `json:"tag,omitempty"`
}

// Replay handles POST /v1/replay - drains the offline write queue now.
func (h *handler) Replay(w http.ResponseWriter, r *http.Request) {
	var req ReplayRequest
	if r.ContentLength > 0 && !decodeJSONBody(w, r, &req) {
		return
	}

	evt := &worker.Event{Kind: worker.EventReplay, ReplayTag: req.Tag}
	if err := h.worker.Dispatch(r.Context(), evt); err != nil {
		if errors.Is(err, worker.ErrUnknownReplayTag) {
			writeJSON(w, http.StatusNotFound, errorResponse(err.Error()))
			return
		}
		writeJSON(w, http.StatusBadGateway, errorResponse(err.Error()))
		return
	}

	depth, err := h.worker.QueueDepth(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse("Failed to read queue depth"))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(map[string]int64{"remaining": depth}))
}

// OfflineRequest toggles the worker's connectivity assumption.
type OfflineRequest struct {
	Offline bool `json:"offline"`
}

// Offline handles PUT /v1/offline.
func (h *handler) Offline(w http.ResponseWriter, r *http.Request) {
	var req OfflineRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	h.worker.SetOffline(req.Offline)
	writeJSON(w, http.StatusOK, okResponse(map[string]bool{"offline": h.worker.Offline()}))
}
