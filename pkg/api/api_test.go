package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/wirecache/wirecache/pkg/cachestore"
	"github.com/wirecache/wirecache/pkg/lifecycle"
	"github.com/wirecache/wirecache/pkg/outbox"
	"github.com/wirecache/wirecache/pkg/router"
	"github.com/wirecache/wirecache/pkg/strategy"
	"github.com/wirecache/wirecache/pkg/update"
	"github.com/wirecache/wirecache/pkg/worker"
)

const testSecret = "integration-test-secret-0123456789abcdef"

func newTestWorker(t *testing.T) *worker.Worker {
	t.Helper()

	dir := t.TempDir()
	store, err := cachestore.Open(filepath.Join(dir, "cache"), cachestore.Options{})
	if err != nil {
		t.Fatalf("failed to open cache store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ob, err := outbox.Open(filepath.Join(dir, "outbox.db"), nil)
	if err != nil {
		t.Fatalf("failed to open outbox: %v", err)
	}
	t.Cleanup(func() { ob.Close() })

	fetcher := strategy.FetcherFunc(func(ctx context.Context, req *strategy.Request) (*strategy.Response, error) {
		return &strategy.Response{
			Status:  http.StatusOK,
			Headers: http.Header{"Content-Type": []string{"text/plain"}},
			Body:    []byte("origin:" + req.URL),
		}, nil
	})

	w, err := worker.New(worker.Options{
		Cache:   store,
		Fetcher: fetcher,
		Rules: []router.Rule{
			{Name: "default", Strategy: strategy.KindNetworkFirst, Namespace: "pages"},
		},
		Outbox:      ob,
		Coordinator: update.NewCoordinator(update.PolicyManual, nil),
		Manifest:    lifecycle.Manifest{Version: 1},
	})
	if err != nil {
		t.Fatalf("failed to create worker: %v", err)
	}
	if err := w.Dispatch(context.Background(), &worker.Event{Kind: worker.EventInstall}); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	return w
}

func newTestRouter(t *testing.T, w *worker.Worker, tokens *TokenService) http.Handler {
	t.Helper()
	return NewRouter(w, Config{}, tokens)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v (body %s)", err, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("failed to decode data: %v (data %s)", err, envelope.Data)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	w := newTestWorker(t)
	h := newTestRouter(t, w, nil)

	rec := doJSON(t, h, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/health/ready", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health/ready after activation, got %d", rec.Code)
	}
}

func TestStatusReportsWorker(t *testing.T) {
	w := newTestWorker(t)
	h := newTestRouter(t, w, nil)

	rec := doJSON(t, h, http.MethodGet, "/v1/status", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var status StatusData
	decodeData(t, rec, &status)
	if status.State != "active" {
		t.Fatalf("expected active state, got %q", status.State)
	}
	if status.Version != 1 || status.ActiveVersion != 1 {
		t.Fatalf("unexpected versions: %+v", status)
	}
	if status.UpdatePolicy != string(update.PolicyManual) {
		t.Fatalf("unexpected policy %q", status.UpdatePolicy)
	}
}

func TestFetchThroughAPI(t *testing.T) {
	w := newTestWorker(t)
	h := newTestRouter(t, w, nil)

	rec := doJSON(t, h, http.MethodPost, "/v1/fetch", FetchRequest{
		URL: "https://example.com/page",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp FetchResponse
	decodeData(t, rec, &resp)
	if resp.Status != http.StatusOK {
		t.Fatalf("unexpected upstream status %d", resp.Status)
	}
	if string(resp.Body) != "origin:https://example.com/page" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
	if resp.Source != string(strategy.SourceNetwork) {
		t.Fatalf("expected network source, got %q", resp.Source)
	}
}

func TestFetchRequiresURL(t *testing.T) {
	w := newTestWorker(t)
	h := newTestRouter(t, w, nil)

	rec := doJSON(t, h, http.MethodPost, "/v1/fetch", FetchRequest{}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMessageCacheSizeRoundtrip(t *testing.T) {
	w := newTestWorker(t)
	h := newTestRouter(t, w, nil)

	// Populate through a fetch so at least one namespace exists.
	doJSON(t, h, http.MethodPost, "/v1/fetch", FetchRequest{URL: "https://example.com/a"}, "")

	rec := doJSON(t, h, http.MethodPost, "/v1/message", worker.Message{
		Type: worker.MessageReportCacheSize,
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var reply worker.MessageResult
	decodeData(t, rec, &reply)
	if reply.Type != worker.ReplyCacheSize {
		t.Fatalf("expected %s reply, got %q", worker.ReplyCacheSize, reply.Type)
	}
	if len(reply.Sizes) == 0 {
		t.Fatal("expected at least one namespace size")
	}
}

func TestMessageUnknownTypeRejected(t *testing.T) {
	w := newTestWorker(t)
	h := newTestRouter(t, w, nil)

	rec := doJSON(t, h, http.MethodPost, "/v1/message", map[string]string{"type": "REWIND_TIME"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown message type, got %d", rec.Code)
	}
}

func TestApplyUpdateWithoutWaitingConflicts(t *testing.T) {
	w := newTestWorker(t)
	h := newTestRouter(t, w, nil)

	rec := doJSON(t, h, http.MethodPost, "/v1/message", worker.Message{
		Type: worker.MessageApplyUpdate,
	}, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 when no update is waiting, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOfflineToggleAndQueueDepth(t *testing.T) {
	w := newTestWorker(t)
	h := newTestRouter(t, w, nil)

	rec := doJSON(t, h, http.MethodPut, "/v1/offline", OfflineRequest{Offline: true}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	for i := 0; i < 2; i++ {
		rec = doJSON(t, h, http.MethodPost, "/v1/fetch", FetchRequest{
			Method: http.MethodPost,
			URL:    fmt.Sprintf("https://example.com/api/%d", i),
		}, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for queued write, got %d", rec.Code)
		}
		var resp FetchResponse
		decodeData(t, rec, &resp)
		if resp.Status != http.StatusAccepted {
			t.Fatalf("expected 202 upstream status, got %d", resp.Status)
		}
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/status", nil, "")
	var status StatusData
	decodeData(t, rec, &status)
	if status.QueueDepth != 2 {
		t.Fatalf("expected queue depth 2, got %d", status.QueueDepth)
	}

	// Back online, drain.
	doJSON(t, h, http.MethodPut, "/v1/offline", OfflineRequest{Offline: false}, "")
	rec = doJSON(t, h, http.MethodPost, "/v1/replay", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from replay, got %d: %s", rec.Code, rec.Body.String())
	}

	var result map[string]int64
	decodeData(t, rec, &result)
	if result["remaining"] != 0 {
		t.Fatalf("expected empty queue after replay, got %d", result["remaining"])
	}
}

func TestBearerAuthGuardsControlRoutes(t *testing.T) {
	w := newTestWorker(t)
	tokens, err := NewTokenService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to create token service: %v", err)
	}
	h := newTestRouter(t, w, tokens)

	// No token
	rec := doJSON(t, h, http.MethodGet, "/v1/status", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}

	// Garbage token
	rec = doJSON(t, h, http.MethodGet, "/v1/status", nil, "not-a-token")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", rec.Code)
	}

	// Valid token
	token, err := tokens.Issue("test-client")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	rec = doJSON(t, h, http.MethodGet, "/v1/status", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with a valid token, got %d", rec.Code)
	}

	// Health stays open
	rec = doJSON(t, h, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected health to stay unauthenticated, got %d", rec.Code)
	}
}

func TestTokenServiceRejectsWeakSecrets(t *testing.T) {
	if _, err := NewTokenService("", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewTokenService("short", time.Hour); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestTokenRoundtrip(t *testing.T) {
	tokens, err := NewTokenService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to create token service: %v", err)
	}

	token, err := tokens.Issue("ctl")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	claims, err := tokens.Validate(token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}
	if claims.ClientName != "ctl" {
		t.Fatalf("unexpected client name %q", claims.ClientName)
	}

	other, err := NewTokenService("another-secret-that-is-long-enough-0000", time.Hour)
	if err != nil {
		t.Fatalf("failed to create second service: %v", err)
	}
	if _, err := other.Validate(token); err == nil {
		t.Fatal("expected validation to fail under a different secret")
	}
}
