package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const (
	ObjectTypeActivity = "activity"
	AspectTypeCreate   = "create"
	AspectTypeUpdate   = "update"
	AspectTypeDelete   = "delete"
)

// ObjectID is a Strava object identifier. Strava sends numbers; dispatch payloads
// written by hand often carry strings. Both decode to the same value.
type ObjectID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ObjectID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ObjectID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("object id must be a string or number: %w", err)
	}
	*id = ObjectID(n.String())
	return nil
}

func (id ObjectID) String() string { return string(id) }

// WebhookEvent is a Strava push subscription event.
type WebhookEvent struct {
	ObjectType string         `json:"object_type"`
	AspectType string         `json:"aspect_type"`
	ObjectID   ObjectID       `json:"object_id"`
	OwnerID    ObjectID       `json:"owner_id"`
	EventTime  int64          `json:"event_time"`
	Updates    map[string]any `json:"updates,omitempty"`
}

// Actionable reports whether the event announces a newly created activity.
func (e WebhookEvent) Actionable() bool {
	return e.ObjectType == ObjectTypeActivity && e.AspectType == AspectTypeCreate
}

// OccurredAt converts the unix-seconds event time.
func (e WebhookEvent) OccurredAt() time.Time {
	if e.EventTime == 0 {
		return time.Time{}
	}
	return time.Unix(e.EventTime, 0).UTC()
}

// Trigger projects the event onto the payload forwarded to the sync job.
func (e WebhookEvent) Trigger() TriggerPayload {
	return TriggerPayload{
		ObjectID:  e.ObjectID,
		OwnerID:   e.OwnerID,
		EventTime: e.EventTime,
		Updates:   e.Updates,
	}
}

// TriggerPayload is the client_payload of a repository dispatch and the value of a
// sync request on Kafka.
type TriggerPayload struct {
	ObjectID  ObjectID       `json:"object_id"`
	OwnerID   ObjectID       `json:"owner_id,omitempty"`
	EventTime int64          `json:"event_time,omitempty"`
	Updates   map[string]any `json:"updates,omitempty"`
}

// ParseActivityID validates that an id is a positive integer, the only form Strava issues.
func ParseActivityID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid activity id %q", id)
	}
	return n, nil
}
