package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// Platform identifies one of the two OAuth2-authenticated services the relay talks to.
type Platform string

const (
	PlatformStrava Platform = "strava"
	PlatformFitbit Platform = "fitbit"
)

// AccessToken is a short-lived bearer credential scoped to one platform.
type AccessToken struct {
	Platform     Platform
	Value        string
	RefreshToken string
	ExpiresAt    time.Time
}

// SourceActivity is the Strava activity detail record. Fields the relay does not
// model are kept in Extra so the record re-serialises without loss.
type SourceActivity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	StartDate          time.Time `json:"start_date"`
	ElapsedTime        int64     `json:"elapsed_time"`
	MovingTime         int64     `json:"moving_time"`
	Distance           float64   `json:"distance"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	SportType          string    `json:"sport_type"`
	Description        string    `json:"description,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`

	// source holds the decoded bytes of each modelled key as received, and
	// baseline what the decoded fields marshal to. A modelled key whose current
	// encoding still equals its baseline is written back exactly as received.
	source   map[string]json.RawMessage
	baseline map[string]json.RawMessage
}

type sourceActivityFields struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	StartDate          time.Time `json:"start_date"`
	ElapsedTime        int64     `json:"elapsed_time"`
	MovingTime         int64     `json:"moving_time"`
	Distance           float64   `json:"distance"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	SportType          string    `json:"sport_type"`
	Description        string    `json:"description,omitempty"`
}

func (a SourceActivity) fields() sourceActivityFields {
	return sourceActivityFields{
		ID:                 a.ID,
		Name:               a.Name,
		Type:               a.Type,
		StartDate:          a.StartDate,
		ElapsedTime:        a.ElapsedTime,
		MovingTime:         a.MovingTime,
		Distance:           a.Distance,
		TotalElevationGain: a.TotalElevationGain,
		SportType:          a.SportType,
		Description:        a.Description,
	}
}

var knownActivityKeys = []string{
	"id", "name", "type", "start_date", "elapsed_time", "moving_time",
	"distance", "total_elevation_gain", "sport_type", "description",
}

// UnmarshalJSON decodes the modelled fields and stashes everything else in Extra.
func (a *SourceActivity) UnmarshalJSON(data []byte) error {
	var fields sourceActivityFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	source := make(map[string]json.RawMessage, len(knownActivityKeys))
	for _, key := range knownActivityKeys {
		if value, ok := raw[key]; ok {
			source[key] = value
			delete(raw, key)
		}
	}
	if len(raw) == 0 {
		raw = nil
	}

	baseline, err := encodeFields(fields)
	if err != nil {
		return err
	}

	*a = SourceActivity{
		ID:                 fields.ID,
		Name:               fields.Name,
		Type:               fields.Type,
		StartDate:          fields.StartDate,
		ElapsedTime:        fields.ElapsedTime,
		MovingTime:         fields.MovingTime,
		Distance:           fields.Distance,
		TotalElevationGain: fields.TotalElevationGain,
		SportType:          fields.SportType,
		Description:        fields.Description,
		Extra:              raw,
		source:             source,
		baseline:           baseline,
	}
	return nil
}

// MarshalJSON writes the modelled fields merged with Extra. Modelled fields win on
// conflict. Untouched modelled fields of a decoded record keep their received form,
// including absence, explicit nulls and empty strings.
func (a SourceActivity) MarshalJSON() ([]byte, error) {
	merged, err := encodeFields(a.fields())
	if err != nil {
		return nil, err
	}

	if a.baseline != nil {
		for _, key := range knownActivityKeys {
			current, hasCurrent := merged[key]
			base, hasBase := a.baseline[key]
			if hasCurrent != hasBase || !bytes.Equal(current, base) {
				continue
			}
			if original, ok := a.source[key]; ok {
				merged[key] = original
			} else {
				delete(merged, key)
			}
		}
	}

	for key, value := range a.Extra {
		if _, exists := merged[key]; !exists && !isKnownActivityKey(key) {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

func encodeFields(fields sourceActivityFields) (map[string]json.RawMessage, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(knownActivityKeys))
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func isKnownActivityKey(key string) bool {
	for _, known := range knownActivityKeys {
		if key == known {
			return true
		}
	}
	return false
}

// TargetActivityPayload is the Fitbit activity-log creation body.
type TargetActivityPayload struct {
	ActivityName   string   `json:"activityName"`
	StartTime      string   `json:"startTime,omitempty"`
	DurationMillis int64    `json:"durationMillis"`
	DistanceKm     *float64 `json:"distance,omitempty"`
	DistanceUnit   string   `json:"distanceUnit,omitempty"`
	Description    string   `json:"description,omitempty"`
}

// TargetActivityRecord is the opaque Fitbit response to an activity-log creation.
type TargetActivityRecord struct {
	Raw json.RawMessage
}

// LogID returns activityLog.logId when present.
func (r TargetActivityRecord) LogID() int64 {
	return gjson.GetBytes(r.Raw, "activityLog.logId").Int()
}

// ActivityName returns activityLog.activityName when present.
func (r TargetActivityRecord) ActivityName() string {
	return gjson.GetBytes(r.Raw, "activityLog.activityName").String()
}
