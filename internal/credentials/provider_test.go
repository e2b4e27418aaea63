package credentials

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/stravbit/internal/config"
	"example.com/stravbit/internal/domain"
)

func TestStravaRefreshSendsJSONGrant(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, map[string]string{
			"client_id":     "strava-id",
			"client_secret": "strava-secret",
			"refresh_token": "strava-refresh",
			"grant_type":    "refresh_token",
		}, body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"strava-access","refresh_token":"strava-refresh-2","expires_at":1735689600,"expires_in":21600}`))
	}))
	defer srv.Close()

	store := NewMemoryStore()
	provider := newTestProvider(t, config.Credentials{
		Strava: config.OAuthClient{ClientID: "strava-id", ClientSecret: "strava-secret", RefreshToken: "strava-refresh", TokenURL: srv.URL},
	}, WithStore(store))

	token, err := provider.RefreshAccessToken(context.Background(), domain.PlatformStrava)
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, "strava-access", token.Value)
	require.Equal(t, domain.PlatformStrava, token.Platform)
	require.Equal(t, time.Unix(1735689600, 0).UTC(), token.ExpiresAt)

	stored, err := store.Load(context.Background(), domain.PlatformStrava)
	require.NoError(t, err)
	require.Equal(t, "strava-refresh-2", stored)
}

func TestFitbitRefreshUsesBasicAuthAndForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("fitbit-id:fitbit-secret"))
		require.Equal(t, expected, r.Header.Get("Authorization"))
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "fitbit-refresh", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fitbit-access","refresh_token":"fitbit-refresh-2","expires_in":28800,"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	store := NewMemoryStore()
	provider := newTestProvider(t, config.Credentials{
		Fitbit: config.OAuthClient{ClientID: "fitbit-id", ClientSecret: "fitbit-secret", RefreshToken: "fitbit-refresh", TokenURL: srv.URL},
	}, WithStore(store))

	token, err := provider.RefreshAccessToken(context.Background(), domain.PlatformFitbit)
	require.NoError(t, err)
	require.Equal(t, "fitbit-access", token.Value)
	require.Equal(t, "fitbit-refresh-2", token.RefreshToken)
	require.WithinDuration(t, time.Now().Add(8*time.Hour), token.ExpiresAt, time.Minute)

	stored, err := store.Load(context.Background(), domain.PlatformFitbit)
	require.NoError(t, err)
	require.Equal(t, "fitbit-refresh-2", stored)
}

func TestStoredRefreshTokenTakesPrecedence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "rotated", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"rotated-again","expires_in":60}`))
	}))
	defer srv.Close()

	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), domain.PlatformFitbit, "rotated"))

	provider := newTestProvider(t, config.Credentials{
		Fitbit: config.OAuthClient{ClientID: "id", ClientSecret: "secret", RefreshToken: "stale", TokenURL: srv.URL},
	}, WithStore(store))

	_, err := provider.RefreshAccessToken(context.Background(), domain.PlatformFitbit)
	require.NoError(t, err)

	stored, _ := store.Load(context.Background(), domain.PlatformFitbit)
	require.Equal(t, "rotated-again", stored)
}

func TestMissingCredentialsFailBeforeRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	provider := newTestProvider(t, config.Credentials{
		Strava: config.OAuthClient{ClientID: "id", RefreshToken: "refresh", TokenURL: srv.URL},
		Fitbit: config.OAuthClient{ClientSecret: "secret", TokenURL: srv.URL},
	})

	for _, platform := range []domain.Platform{domain.PlatformStrava, domain.PlatformFitbit} {
		_, err := provider.RefreshAccessToken(context.Background(), platform)
		require.Error(t, err)
		require.ErrorIs(t, err, domain.ErrMissingCredentials)
		require.Equal(t, domain.KindConfiguration, domain.KindOf(err))
		require.Contains(t, err.Error(), "missing "+string(platform)+" credentials")
	}
	require.Equal(t, int32(0), calls.Load())
}

func TestRefreshFailureCarriesUpstreamBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Bad Request","errors":[{"resource":"RefreshToken","code":"invalid"}]}`))
	}))
	defer srv.Close()

	creds := config.OAuthClient{ClientID: "id", ClientSecret: "secret", RefreshToken: "bad", TokenURL: srv.URL}
	store := NewMemoryStore()
	provider := newTestProvider(t, config.Credentials{Strava: creds, Fitbit: creds}, WithStore(store))

	for _, platform := range []domain.Platform{domain.PlatformStrava, domain.PlatformFitbit} {
		_, err := provider.RefreshAccessToken(context.Background(), platform)
		require.Error(t, err)
		require.Equal(t, domain.KindUpstreamAuth, domain.KindOf(err))
		require.Contains(t, err.Error(), "token refresh failed")
		require.Contains(t, err.Error(), "RefreshToken")

		stored, _ := store.Load(context.Background(), platform)
		require.Empty(t, stored)
	}
}

func TestFitbitBasicAuthEscapesReservedCharacters(t *testing.T) {
	const (
		clientID     = "id+with space"
		clientSecret = "s3cr=t/&:"
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected := "Basic " + base64.StdEncoding.EncodeToString([]byte(url.QueryEscape(clientID)+":"+url.QueryEscape(clientSecret)))
		require.Equal(t, expected, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"r","expires_in":60}`))
	}))
	defer srv.Close()

	provider := newTestProvider(t, config.Credentials{
		Fitbit: config.OAuthClient{ClientID: clientID, ClientSecret: clientSecret, RefreshToken: "refresh", TokenURL: srv.URL},
	})

	_, err := provider.RefreshAccessToken(context.Background(), domain.PlatformFitbit)
	require.NoError(t, err)
}

func TestSourceFailureKeepsRotatedTargetToken(t *testing.T) {
	var fitbitDone atomic.Bool
	strava := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Bad Request"}`))
	}))
	defer strava.Close()
	fitbit := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "fitbit-refresh", r.PostForm.Get("refresh_token"))
		// Fitbit has accepted the grant; the old refresh token is now dead.
		time.Sleep(300 * time.Millisecond)
		fitbitDone.Store(true)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"rotated","expires_in":60}`))
	}))
	defer fitbit.Close()

	store := NewMemoryStore()
	provider := newTestProvider(t, config.Credentials{
		Strava: config.OAuthClient{ClientID: "id", ClientSecret: "secret", RefreshToken: "strava-refresh", TokenURL: strava.URL},
		Fitbit: config.OAuthClient{ClientID: "id", ClientSecret: "secret", RefreshToken: "fitbit-refresh", TokenURL: fitbit.URL},
	}, WithStore(store))

	fetcher := &countingFetcher{}
	uploader := &countingUploader{}
	svc := domain.NewService(provider, fetcher, uploader, func(domain.SourceActivity) domain.TargetActivityPayload {
		return domain.TargetActivityPayload{}
	}, domain.WithLogger(log.New(testWriter{t}, "", 0)))

	out := svc.Sync(context.Background(), "1")
	require.Equal(t, domain.StepSourceToken, out.Step)
	require.Equal(t, domain.KindUpstreamAuth, domain.KindOf(out.Err))
	require.True(t, fitbitDone.Load())
	require.Zero(t, fetcher.calls.Load())
	require.Zero(t, uploader.calls.Load())

	stored, err := store.Load(context.Background(), domain.PlatformFitbit)
	require.NoError(t, err)
	require.Equal(t, "rotated", stored)
}

func TestRotationIsSavedAfterCallerCancels(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"rotated","expires_in":60}`))
	}))
	defer srv.Close()

	provider := newTestProvider(t, config.Credentials{
		Fitbit: config.OAuthClient{ClientID: "id", ClientSecret: "secret", RefreshToken: "refresh", TokenURL: srv.URL},
	}, WithStore(cancellingStore{Store: store, cancel: cancel}))

	_, err := provider.RefreshAccessToken(ctx, domain.PlatformFitbit)
	require.NoError(t, err)

	stored, _ := store.Load(context.Background(), domain.PlatformFitbit)
	require.Equal(t, "rotated", stored)
}

// cancellingStore cancels the caller's context right before saving, and refuses
// to save under a cancelled context like a database driver would.
type cancellingStore struct {
	Store
	cancel context.CancelFunc
}

func (s cancellingStore) Save(ctx context.Context, platform domain.Platform, refreshToken string) error {
	s.cancel()
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.Save(ctx, platform, refreshToken)
}

type countingFetcher struct{ calls atomic.Int32 }

func (f *countingFetcher) FetchActivity(context.Context, string, domain.AccessToken) (domain.SourceActivity, error) {
	f.calls.Add(1)
	return domain.SourceActivity{}, nil
}

type countingUploader struct{ calls atomic.Int32 }

func (u *countingUploader) UploadActivity(context.Context, domain.TargetActivityPayload, domain.AccessToken) (domain.TargetActivityRecord, error) {
	u.calls.Add(1)
	return domain.TargetActivityRecord{}, nil
}

func newTestProvider(t *testing.T, creds config.Credentials, opts ...Option) *Provider {
	t.Helper()
	opts = append(opts, WithLogger(log.New(testWriter{t}, "", 0)))
	return NewProvider(creds, 5*time.Second, opts...)
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
