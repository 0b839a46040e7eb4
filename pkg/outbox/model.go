package outbox

import (
	"encoding/json"
	"net/http"
	"time"
)

// Item status values.
const (
	// StatusPending marks an item that has not been delivered yet.
	StatusPending = "pending"

	// StatusFailed marks an item whose most recent delivery attempt failed.
	// Failed items remain in the queue and are retried on the next replay.
	StatusFailed = "failed"
)

// Item is a queued write request awaiting delivery to the origin.
//
// Items are appended in the order the requests were intercepted and the
// auto-incremented ID preserves that order across restarts. An item leaves
// the table only after a successful delivery.
type Item struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	URL        string    `gorm:"not null;size:2048" json:"url"`
	Method     string    `gorm:"not null;size:16" json:"method"`
	Headers    string    `gorm:"type:text" json:"-"` // JSON-encoded http.Header
	Body       []byte    `gorm:"type:blob" json:"-"`
	Status     string    `gorm:"not null;default:pending;size:16" json:"status"`
	Attempts   int       `gorm:"default:0" json:"attempts"`
	LastError  string    `gorm:"type:text" json:"last_error,omitempty"`
	EnqueuedAt time.Time `gorm:"autoCreateTime" json:"enqueued_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Item.
func (Item) TableName() string {
	return "outbox_items"
}

// Header returns the parsed request headers.
func (i *Item) Header() http.Header {
	return parseHeaders(i.Headers)
}

// SetHeader serializes the given headers into the item.
func (i *Item) SetHeader(h http.Header) error {
	raw, err := marshalHeaders(h)
	if err != nil {
		return err
	}
	i.Headers = raw
	return nil
}

// parseHeaders deserializes a JSON-encoded header string into an http.Header.
// Returns an empty header for empty, "null", or invalid JSON.
func parseHeaders(raw string) http.Header {
	if raw == "" || raw == "null" {
		return http.Header{}
	}
	var h http.Header
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return http.Header{}
	}
	return h
}

// marshalHeaders serializes an http.Header into a JSON string for storage.
// Returns an empty string for nil or empty headers.
func marshalHeaders(h http.Header) (string, error) {
	if len(h) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
