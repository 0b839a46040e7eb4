package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wirecache/wirecache/pkg/strategy"
)

// maxResponseBody caps how much of an origin response is buffered. Responses
// over the cap fail the fetch rather than exhausting memory.
const maxResponseBody = 32 << 20 // 32MB

// HTTPFetcher is the production strategy.Fetcher: it performs real HTTP(S)
// requests against the origin.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher whose requests are bounded by the given
// timeout. Zero means no client-level timeout; callers bound via context.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch performs the request and buffers the response.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *strategy.Request) (*strategy.Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build origin request: %w", err)
	}
	for name, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("origin fetch failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read origin response: %w", err)
	}
	if len(data) > maxResponseBody {
		return nil, fmt.Errorf("origin response for %s exceeds %d bytes", req.URL, maxResponseBody)
	}

	return &strategy.Response{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Body:    data,
	}, nil
}
