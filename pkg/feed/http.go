package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tracklog/pkg/model"
)

// HTTPSource polls a JSON position endpoint, the pull-based fallback
// producer of the feed.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a poll source for the given endpoint.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Get implements Source.
func (h *HTTPSource) Get(ctx context.Context) (model.Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return model.Position{}, fmt.Errorf("feed: build poll request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return model.Position{}, fmt.Errorf("feed: poll %s: %w", h.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Position{}, fmt.Errorf("feed: poll %s: unexpected status %d", h.url, resp.StatusCode)
	}

	var wf wireFix
	if err := json.NewDecoder(resp.Body).Decode(&wf); err != nil {
		return model.Position{}, fmt.Errorf("feed: decode poll response: %w", err)
	}
	return wf.position(), nil
}
