// Package trigger resolves which activity a sync run targets and hands webhook
// events to the job runner that performs the sync.
package trigger

import (
	"context"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"example.com/stravbit/internal/domain"
)

const objectIDPath = "client_payload.object_id"

// Dispatcher forwards an actionable webhook event to whatever runs the sync job.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload domain.TriggerPayload) error
}

// ResolveActivityID picks the activity for a one-shot run. The repository dispatch
// event file wins; the manual override is used when there is no event file or it
// carries no object id. An empty result means there is nothing to sync.
func ResolveActivityID(eventPath, override string) (string, error) {
	if eventPath != "" {
		data, err := os.ReadFile(eventPath)
		switch {
		case err == nil:
			if !gjson.ValidBytes(data) {
				return "", domain.ConfigurationError("event file is not valid JSON", nil)
			}
			if id := strings.TrimSpace(gjson.GetBytes(data, objectIDPath).String()); id != "" {
				return id, nil
			}
		case os.IsNotExist(err):
			// Runs started by hand have no event file.
		default:
			return "", domain.ConfigurationError("read event file", err)
		}
	}
	return strings.TrimSpace(override), nil
}
