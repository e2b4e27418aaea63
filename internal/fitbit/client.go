// Package fitbit creates activity logs through the Fitbit Web API.
package fitbit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"example.com/stravbit/internal/domain"
)

const activitiesPath = "/1/user/-/activities.json"

// Client uploads mapped activities with a caller-supplied bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client against baseURL (e.g. https://api.fitbit.com).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// UploadActivity posts the payload as JSON and returns the created record verbatim.
func (c *Client) UploadActivity(ctx context.Context, payload domain.TargetActivityPayload, token domain.AccessToken) (domain.TargetActivityRecord, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.TargetActivityRecord{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+activitiesPath, bytes.NewReader(body))
	if err != nil {
		return domain.TargetActivityRecord{}, domain.UpstreamError(domain.KindUpstreamUpload, "upload failed", 0, nil, err)
	}
	req.Header.Set("Authorization", "Bearer "+token.Value)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.TargetActivityRecord{}, domain.UpstreamError(domain.KindUpstreamUpload, "upload failed", 0, nil, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.TargetActivityRecord{}, domain.UpstreamError(domain.KindUpstreamUpload, "upload failed", resp.StatusCode, nil, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode >= 300 {
		return domain.TargetActivityRecord{}, domain.UpstreamError(domain.KindUpstreamUpload, "upload failed", resp.StatusCode, data, nil)
	}
	return domain.TargetActivityRecord{Raw: json.RawMessage(data)}, nil
}
