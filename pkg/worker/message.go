package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wirecache/wirecache/internal/logger"
	"github.com/wirecache/wirecache/pkg/cachestore"
	"github.com/wirecache/wirecache/pkg/strategy"
)

// MessageType identifies a control message.
type MessageType string

const (
	// MessageApplyUpdate promotes the waiting version immediately.
	MessageApplyUpdate MessageType = "APPLY_UPDATE"

	// MessageWarmCache fetches a list of URLs and stores the responses in a
	// named namespace.
	MessageWarmCache MessageType = "WARM_CACHE"

	// MessagePurgeCache drops a named namespace.
	MessagePurgeCache MessageType = "PURGE_CACHE"

	// MessageReportCacheSize asks for per-namespace entry and byte counts.
	MessageReportCacheSize MessageType = "REPORT_CACHE_SIZE"
)

// ReplyCacheSize is the reply type carrying NamespaceSize data.
const ReplyCacheSize = "CACHE_SIZE"

// ErrUnknownMessageType is returned for message types the worker does not
// handle.
var ErrUnknownMessageType = errors.New("worker: unknown message type")

// Message is a control message addressed to the worker.
type Message struct {
	Type MessageType `json:"type"`

	// URLs lists resources to warm. WARM_CACHE only.
	URLs []string `json:"urls,omitempty"`

	// Namespace names the target namespace purpose. WARM_CACHE and
	// PURGE_CACHE only.
	Namespace string `json:"namespace,omitempty"`
}

// NamespaceSize is one namespace's footprint.
type NamespaceSize struct {
	Namespace string `json:"namespace"`
	Entries   int    `json:"entries"`
	Bytes     int64  `json:"bytes"`
}

// MessageResult is the worker's reply to a control message.
type MessageResult struct {
	Type string `json:"type"`

	// Warmed counts URLs stored by WARM_CACHE. Failures are skipped, not
	// fatal.
	Warmed int `json:"warmed,omitempty"`

	// Sizes carries CACHE_SIZE data.
	Sizes []NamespaceSize `json:"sizes,omitempty"`
}

// handleMessage dispatches a control message and stores the reply on the
// event.
func (w *Worker) handleMessage(ctx context.Context, evt *Event) error {
	msg := evt.Message
	if msg == nil {
		return errors.New("worker: message event without a message")
	}

	switch msg.Type {
	case MessageApplyUpdate:
		if err := w.opts.Coordinator.ApplyUpdate(ctx); err != nil {
			return err
		}
		w.opts.Coordinator.ControllerChanged()
		evt.Reply = &MessageResult{Type: string(MessageApplyUpdate)}
		return nil

	case MessageWarmCache:
		return w.warmCache(ctx, evt, msg)

	case MessagePurgeCache:
		if msg.Namespace == "" {
			return errors.New("worker: PURGE_CACHE requires a namespace")
		}
		if err := w.opts.Cache.DeleteNamespace(ctx, w.liveNamespace(msg.Namespace)); err != nil {
			return err
		}
		evt.Reply = &MessageResult{Type: string(MessagePurgeCache)}
		return nil

	case MessageReportCacheSize:
		return w.reportCacheSize(ctx, evt)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}
}

// warmCache fetches each URL and stores successful responses. Individual
// failures are logged and skipped so one dead URL does not spoil the batch.
func (w *Worker) warmCache(ctx context.Context, evt *Event, msg *Message) error {
	if msg.Namespace == "" {
		return errors.New("worker: WARM_CACHE requires a namespace")
	}
	ns := w.liveNamespace(msg.Namespace)

	warmed := 0
	for _, rawURL := range msg.URLs {
		resp, err := w.opts.Fetcher.Fetch(ctx, &strategy.Request{
			Method: http.MethodGet,
			URL:    rawURL,
		})
		if err != nil {
			logger.Warn("cache warm fetch failed", logger.URL(rawURL), logger.Err(err))
			continue
		}
		if resp.Status < 200 || resp.Status >= 300 {
			logger.Warn("cache warm skipped non-success response",
				logger.URL(rawURL),
				logger.Status(resp.Status))
			continue
		}

		err = w.opts.Cache.Put(ctx, ns, &cachestore.Entry{
			URL:        rawURL,
			Status:     resp.Status,
			Headers:    resp.Headers,
			Body:       resp.Body,
			InsertedAt: time.Now(),
		})
		if err != nil {
			logger.Warn("cache warm store failed", logger.URL(rawURL), logger.Err(err))
			continue
		}
		warmed++
	}

	evt.Reply = &MessageResult{Type: string(MessageWarmCache), Warmed: warmed}
	return nil
}

// reportCacheSize sizes every namespace in the store.
func (w *Worker) reportCacheSize(ctx context.Context, evt *Event) error {
	namespaces, err := w.opts.Cache.Namespaces(ctx)
	if err != nil {
		return err
	}

	sizes := make([]NamespaceSize, 0, len(namespaces))
	for _, ns := range namespaces {
		entries, bytes, err := w.opts.Cache.Size(ctx, ns)
		if err != nil {
			return err
		}
		sizes = append(sizes, NamespaceSize{
			Namespace: ns.StorageName(),
			Entries:   entries,
			Bytes:     bytes,
		})
	}

	evt.Reply = &MessageResult{Type: ReplyCacheSize, Sizes: sizes}
	return nil
}
