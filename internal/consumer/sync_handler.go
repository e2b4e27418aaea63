package consumer

import (
	"context"
	"errors"

	"example.com/stravbit/internal/domain"
)

// Syncer runs one sync for a trigger payload.
type Syncer interface {
	SyncTrigger(ctx context.Context, payload domain.TriggerPayload) domain.SyncOutcome
}

// SyncHandler runs the sync workflow for each consumed request.
type SyncHandler struct {
	syncer Syncer
}

// NewSyncHandler constructs a handler backed by the provided syncer.
func NewSyncHandler(syncer Syncer) *SyncHandler {
	return &SyncHandler{syncer: syncer}
}

// Handle returns an error only when the run was interrupted by shutdown, leaving the
// record uncommitted so another member of the group picks it up. Terminal sync
// failures are logged by the service and committed.
func (h *SyncHandler) Handle(ctx context.Context, msg Message) error {
	out := h.syncer.SyncTrigger(ctx, msg.Payload)
	if out.OK() {
		return nil
	}
	if errors.Is(out.Err, context.Canceled) || errors.Is(out.Err, context.DeadlineExceeded) {
		return out.Err
	}
	return nil
}
