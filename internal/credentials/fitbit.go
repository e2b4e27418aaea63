package credentials

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	"example.com/stravbit/internal/config"
	"example.com/stravbit/internal/domain"
)

// refreshFitbit runs the standard OAuth2 refresh grant: client credentials in a
// Basic Authorization header, grant parameters form-encoded in the body.
// x/oauth2 query-escapes the client id and secret before the base64 step, as
// RFC 6749 section 2.3.1 asks. Fitbit ids and secrets are alphanumeric, so the
// header matches the plain "id:secret" form Fitbit documents.
func (p *Provider) refreshFitbit(ctx context.Context, client config.OAuthClient) (domain.AccessToken, error) {
	conf := &oauth2.Config{
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  client.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: client.RefreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			return domain.AccessToken{}, domain.UpstreamError(domain.KindUpstreamAuth, "fitbit token refresh failed", status, retrieveErr.Body, err)
		}
		return domain.AccessToken{}, domain.UpstreamError(domain.KindUpstreamAuth, "fitbit token refresh failed", 0, nil, err)
	}

	return domain.AccessToken{
		Value:        tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry.UTC(),
	}, nil
}
