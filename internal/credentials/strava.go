package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"example.com/stravbit/internal/config"
	"example.com/stravbit/internal/domain"
)

type stravaTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
	GrantType    string `json:"grant_type"`
}

type stravaTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	ExpiresIn    int64  `json:"expires_in"`
}

// refreshStrava posts the refresh grant as a JSON body.
func (p *Provider) refreshStrava(ctx context.Context, client config.OAuthClient) (domain.AccessToken, error) {
	body, err := json.Marshal(stravaTokenRequest{
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
		RefreshToken: client.RefreshToken,
		GrantType:    "refresh_token",
	})
	if err != nil {
		return domain.AccessToken{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.TokenURL, bytes.NewReader(body))
	if err != nil {
		return domain.AccessToken{}, domain.ConfigurationError("invalid strava token url", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.AccessToken{}, domain.UpstreamError(domain.KindUpstreamAuth, "strava token refresh failed", 0, nil, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return domain.AccessToken{}, domain.UpstreamError(domain.KindUpstreamAuth, "strava token refresh failed", resp.StatusCode, data, nil)
	}

	var payload stravaTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.AccessToken{}, domain.UpstreamError(domain.KindUpstreamAuth, "strava token refresh failed", resp.StatusCode, nil, err)
	}
	if payload.AccessToken == "" {
		return domain.AccessToken{}, domain.UpstreamError(domain.KindUpstreamAuth, "strava token refresh failed", resp.StatusCode, []byte("response carried no access_token"), nil)
	}

	expiresAt := time.Unix(payload.ExpiresAt, 0).UTC()
	if payload.ExpiresAt == 0 {
		expiresAt = p.now().Add(time.Duration(payload.ExpiresIn) * time.Second).UTC()
	}

	return domain.AccessToken{
		Value:        payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}
