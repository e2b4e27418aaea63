package trigger

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
	"example.com/stravbit/internal/observability"
)

const githubAccept = "application/vnd.github.v3+json"

// GitHubDispatcher starts the sync workflow through a repository_dispatch event.
type GitHubDispatcher struct {
	baseURL    string
	token      string
	repo       string
	eventType  string
	httpClient *http.Client
}

// NewGitHubDispatcher constructs a dispatcher for owner/name repo.
func NewGitHubDispatcher(baseURL, token, repo, eventType string, timeout time.Duration) *GitHubDispatcher {
	return &GitHubDispatcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		repo:       repo,
		eventType:  eventType,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type dispatchRequest struct {
	EventType     string                `json:"event_type"`
	ClientPayload domain.TriggerPayload `json:"client_payload"`
}

// Dispatch posts the event. GitHub answers 204 on success.
func (d *GitHubDispatcher) Dispatch(ctx context.Context, payload domain.TriggerPayload) (err error) {
	defer func() { observability.RecordDispatch("github", err) }()

	if d.token == "" {
		return domain.ConfigurationError("github token is not configured", nil)
	}

	body, err := json.Marshal(dispatchRequest{EventType: d.eventType, ClientPayload: payload})
	if err != nil {
		return fmt.Errorf("marshal dispatch: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/dispatches", d.baseURL, d.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+d.token)
	req.Header.Set("Accept", githubAccept)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return domain.UpstreamError(domain.KindDispatch, "repository dispatch failed", 0, nil, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return domain.UpstreamError(domain.KindDispatch, "repository dispatch failed", resp.StatusCode, respBody, nil)
	}
	return nil
}
