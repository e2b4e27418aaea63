// Package strava reads activity detail records from the Strava v3 API.
package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"example.com/stravbit/internal/domain"
)

// Client fetches activities with a caller-supplied bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client against baseURL (e.g. https://www.strava.com/api/v3).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchActivity performs GET /activities/{id}. It does not retry.
func (c *Client) FetchActivity(ctx context.Context, id string, token domain.AccessToken) (domain.SourceActivity, error) {
	endpoint := fmt.Sprintf("%s/activities/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.SourceActivity{}, domain.UpstreamError(domain.KindUpstreamFetch, "activity fetch failed", 0, nil, err)
	}
	req.Header.Set("Authorization", "Bearer "+token.Value)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.SourceActivity{}, domain.UpstreamError(domain.KindUpstreamFetch, "activity fetch failed", 0, nil, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return domain.SourceActivity{}, domain.UpstreamError(domain.KindUpstreamFetch, "activity fetch failed", resp.StatusCode, body, nil)
	}

	var activity domain.SourceActivity
	if err := json.NewDecoder(resp.Body).Decode(&activity); err != nil {
		return domain.SourceActivity{}, domain.UpstreamError(domain.KindUpstreamFetch, "activity fetch failed", resp.StatusCode, nil, fmt.Errorf("decode activity: %w", err))
	}
	return activity, nil
}
