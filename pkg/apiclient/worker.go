package apiclient

// Status describes the daemon's worker.
type Status struct {
	WorkerID        string `json:"worker_id"`
	State           string `json:"state"`
	Version         int    `json:"version"`
	ActiveVersion   int    `json:"active_version,omitempty"`
	UpdatePolicy    string `json:"update_policy"`
	UpdateAvailable bool   `json:"update_available"`
	Offline         bool   `json:"offline"`
	QueueDepth      int64  `json:"queue_depth"`
}

// GetStatus fetches the worker status.
func (c *Client) GetStatus() (*Status, error) {
	var status Status
	if err := c.get("/v1/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Message is a control message for the worker.
type Message struct {
	Type      string   `json:"type"`
	URLs      []string `json:"urls,omitempty"`
	Namespace string   `json:"namespace,omitempty"`
}

// NamespaceSize is one cache namespace's footprint.
type NamespaceSize struct {
	Namespace string `json:"namespace"`
	Entries   int    `json:"entries"`
	Bytes     int64  `json:"bytes"`
}

// MessageResult is the worker's reply to a control message.
type MessageResult struct {
	Type   string          `json:"type"`
	Warmed int             `json:"warmed,omitempty"`
	Sizes  []NamespaceSize `json:"sizes,omitempty"`
}

// SendMessage posts a control message and returns the worker's reply.
func (c *Client) SendMessage(msg Message) (*MessageResult, error) {
	var result MessageResult
	if err := c.post("/v1/message", msg, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ApplyUpdate promotes the waiting worker version.
func (c *Client) ApplyUpdate() error {
	_, err := c.SendMessage(Message{Type: "APPLY_UPDATE"})
	return err
}

// WarmCache fetches the given URLs into a namespace.
func (c *Client) WarmCache(namespace string, urls []string) (*MessageResult, error) {
	return c.SendMessage(Message{Type: "WARM_CACHE", Namespace: namespace, URLs: urls})
}

// PurgeCache drops a namespace.
func (c *Client) PurgeCache(namespace string) error {
	_, err := c.SendMessage(Message{Type: "PURGE_CACHE", Namespace: namespace})
	return err
}

// CacheSizes reports per-namespace entry and byte counts.
func (c *Client) CacheSizes() ([]NamespaceSize, error) {
	result, err := c.SendMessage(Message{Type: "REPORT_CACHE_SIZE"})
	if err != nil {
		return nil, err
	}
	return result.Sizes, nil
}

// ReplayResult reports the queue depth left after a replay pass.
type ReplayResult struct {
	Remaining int64 `json:"remaining"`
}

// Replay drains the offline write queue now.
func (c *Client) Replay() (*ReplayResult, error) {
	var result ReplayResult
	if err := c.post("/v1/replay", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetOffline toggles the daemon's connectivity assumption.
func (c *Client) SetOffline(offline bool) error {
	return c.put("/v1/offline", map[string]bool{"offline": offline}, nil)
}
