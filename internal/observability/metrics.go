// Package observability registers the relay's Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	syncRunsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravbit",
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Number of sync runs grouped by terminal status and the step they stopped at.",
	}, []string{"status", "step"})

	syncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stravbit",
		Subsystem: "sync",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a sync run from id resolution to upload.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	lastSyncedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stravbit",
		Subsystem: "sync",
		Name:      "last_activity_synced_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity uploaded to the target platform.",
	})

	tokenRefreshCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravbit",
		Subsystem: "credentials",
		Name:      "token_refreshes_total",
		Help:      "Number of access token exchanges grouped by platform and result.",
	}, []string{"platform", "result"})

	webhookEventsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravbit",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Number of push events received grouped by how they were handled.",
	}, []string{"outcome"})

	dispatchCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravbit",
		Subsystem: "trigger",
		Name:      "dispatches_total",
		Help:      "Number of sync triggers handed to a dispatcher grouped by mode and result.",
	}, []string{"mode", "result"})
)

func init() {
	prometheus.MustRegister(syncRunsCounter, syncDuration, lastSyncedGauge, tokenRefreshCounter, webhookEventsCounter, dispatchCounter)
}

// RecordSync updates run counters and, for successful runs, the synced watermark.
func RecordSync(status, step string, elapsed time.Duration) {
	syncRunsCounter.WithLabelValues(status, step).Inc()
	if elapsed > 0 {
		syncDuration.Observe(elapsed.Seconds())
	}
	if status == "succeeded" {
		lastSyncedGauge.Set(float64(time.Now().Unix()))
	}
}

// RecordTokenRefresh counts a token exchange attempt.
func RecordTokenRefresh(platform string, err error) {
	tokenRefreshCounter.WithLabelValues(platform, result(err)).Inc()
}

// RecordWebhookEvent counts a push event by outcome (dispatched, ignored, rejected, failed).
func RecordWebhookEvent(outcome string) {
	webhookEventsCounter.WithLabelValues(outcome).Inc()
}

// RecordDispatch counts a trigger hand-off.
func RecordDispatch(mode string, err error) {
	dispatchCounter.WithLabelValues(mode, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
