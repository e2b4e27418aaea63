// Package mapper translates Strava activities into Fitbit activity-log payloads.
package mapper

import (
	"time"

	"example.com/stravbit/internal/domain"
)

const (
	// DefaultActivityName is used for Strava types without a Fitbit counterpart.
	DefaultActivityName = "Sport"
	distanceUnit        = "Kilometer"
	descriptionPrefix   = "Imported from Strava: "
)

var activityNames = map[string]string{
	"Run":            "Run",
	"Ride":           "Bike",
	"Swim":           "Swim",
	"Walk":           "Walk",
	"Hike":           "Hike",
	"WeightTraining": "Weights",
	"Workout":        "Sport",
	"Yoga":           "Yoga",
}

// ActivityName returns the Fitbit activity name for a Strava activity type.
func ActivityName(stravaType string) string {
	if name, ok := activityNames[stravaType]; ok {
		return name
	}
	return DefaultActivityName
}

// MapActivity builds the upload payload. It is pure: missing numeric fields arrive
// as zero and map to zero rather than failing.
func MapActivity(activity domain.SourceActivity) domain.TargetActivityPayload {
	distanceKm := activity.Distance / 1000

	payload := domain.TargetActivityPayload{
		ActivityName:   ActivityName(activity.Type),
		DurationMillis: activity.ElapsedTime * 1000,
		DistanceKm:     &distanceKm,
		DistanceUnit:   distanceUnit,
		Description:    descriptionPrefix + activity.Name,
	}
	if !activity.StartDate.IsZero() {
		payload.StartTime = activity.StartDate.UTC().Format(time.RFC3339)
	}
	return payload
}
