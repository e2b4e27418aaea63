package strava

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/stravbit/internal/domain"
)

const activityJSON = `{
  "id": 123,
  "name": "Morning Run",
  "type": "Run",
  "sport_type": "Run",
  "start_date": "2024-05-01T06:30:00Z",
  "elapsed_time": 3600,
  "moving_time": 3400,
  "distance": 10000,
  "total_elevation_gain": 42.5,
  "kudos_count": 3,
  "map": {"id": "a123", "summary_polyline": "abc"}
}`

func TestFetchActivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/v3/activities/123", r.URL.Path)
		require.Equal(t, "Bearer strava-access", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(activityJSON))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/api/v3/", 5*time.Second)
	activity, err := client.FetchActivity(context.Background(), "123", domain.AccessToken{Value: "strava-access"})
	require.NoError(t, err)

	require.Equal(t, int64(123), activity.ID)
	require.Equal(t, "Morning Run", activity.Name)
	require.Equal(t, "Run", activity.Type)
	require.Equal(t, int64(3600), activity.ElapsedTime)
	require.Equal(t, 10000.0, activity.Distance)
	require.Equal(t, time.Date(2024, time.May, 1, 6, 30, 0, 0, time.UTC), activity.StartDate.UTC())
	require.Contains(t, activity.Extra, "kudos_count")
	require.Contains(t, activity.Extra, "map")

	reencoded, err := json.Marshal(activity)
	require.NoError(t, err)
	var roundTrip map[string]any
	require.NoError(t, json.Unmarshal(reencoded, &roundTrip))
	require.Equal(t, float64(3), roundTrip["kudos_count"])
	require.Equal(t, "abc", roundTrip["map"].(map[string]any)["summary_polyline"])
}

func TestFetchActivityFailureCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Record Not Found"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.FetchActivity(context.Background(), "999", domain.AccessToken{Value: "t"})
	require.Error(t, err)
	require.Equal(t, domain.KindUpstreamFetch, domain.KindOf(err))
	require.Contains(t, err.Error(), "activity fetch failed")
	require.Contains(t, err.Error(), "Record Not Found")
}

func TestFetchActivityTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(url, time.Second)
	_, err := client.FetchActivity(context.Background(), "1", domain.AccessToken{Value: "t"})
	require.Error(t, err)
	require.Equal(t, domain.KindUpstreamFetch, domain.KindOf(err))
}
