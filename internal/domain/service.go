// Package domain defines the activity relay model and the sync workflow.
package domain

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"example.com/stravbit/internal/observability"
)

// TokenProvider exchanges stored refresh tokens for access tokens.
type TokenProvider interface {
	RefreshAccessToken(ctx context.Context, platform Platform) (AccessToken, error)
}

// ActivityFetcher reads a full activity record from the source platform.
type ActivityFetcher interface {
	FetchActivity(ctx context.Context, id string, token AccessToken) (SourceActivity, error)
}

// ActivityUploader creates an activity log on the target platform.
type ActivityUploader interface {
	UploadActivity(ctx context.Context, payload TargetActivityPayload, token AccessToken) (TargetActivityRecord, error)
}

// Mapper translates a source activity into the target payload. It must be pure.
type Mapper func(SourceActivity) TargetActivityPayload

// SyncStatus is the terminal state of a run.
type SyncStatus string

const (
	SyncStatusSucceeded SyncStatus = "succeeded"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncStep names the pipeline stage a run stopped at.
type SyncStep string

const (
	StepResolve     SyncStep = "resolve"
	StepSourceToken SyncStep = "source_token"
	StepTargetToken SyncStep = "target_token"
	StepFetch       SyncStep = "fetch"
	StepUpload      SyncStep = "upload"
	StepDone        SyncStep = "done"
)

// SyncOutcome is the explicit result of one run.
type SyncOutcome struct {
	RunID        string
	ActivityID   string
	Status       SyncStatus
	Step         SyncStep
	ActivityName string
	Payload      TargetActivityPayload
	Record       TargetActivityRecord
	Err          error
	StartedAt    time.Time
	FinishedAt   time.Time
}

// OK reports whether the activity was uploaded.
func (o SyncOutcome) OK() bool { return o.Status == SyncStatusSucceeded }

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithLogger overrides the logger used to report run progress.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates token refresh, fetch, mapping and upload for one activity.
type Service struct {
	tokens   TokenProvider
	fetcher  ActivityFetcher
	uploader ActivityUploader
	mapper   Mapper
	logger   *log.Logger
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(tokens TokenProvider, fetcher ActivityFetcher, uploader ActivityUploader, mapper Mapper, opts ...Option) *Service {
	s := &Service{
		tokens:   tokens,
		fetcher:  fetcher,
		uploader: uploader,
		mapper:   mapper,
		logger:   log.New(log.Writer(), "[sync] ", log.LstdFlags|log.Lmsgprefix),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncTrigger runs a sync for the activity named by a dispatch payload.
func (s *Service) SyncTrigger(ctx context.Context, payload TriggerPayload) SyncOutcome {
	return s.Sync(ctx, payload.ObjectID.String())
}

// Sync relays a single activity. The first failing step ends the run and no
// later step is attempted.
func (s *Service) Sync(ctx context.Context, activityID string) (out SyncOutcome) {
	out = SyncOutcome{
		RunID:      uuid.NewString(),
		ActivityID: strings.TrimSpace(activityID),
		StartedAt:  s.now(),
	}
	defer func() {
		observability.RecordSync(string(out.Status), string(out.Step), out.FinishedAt.Sub(out.StartedAt))
	}()

	if out.ActivityID == "" {
		return s.fail(out, StepResolve, ConfigurationError("resolve activity", ErrNoActivityID))
	}

	s.logger.Printf("processing activity (run=%s, activity=%s)", out.RunID, out.ActivityID)

	sourceToken, targetToken, step, err := s.acquireTokens(ctx)
	if err != nil {
		return s.fail(out, step, err)
	}

	activity, err := s.fetcher.FetchActivity(ctx, out.ActivityID, sourceToken)
	if err != nil {
		return s.fail(out, StepFetch, err)
	}
	s.logger.Printf("retrieved activity (run=%s, name=%q, type=%s)", out.RunID, activity.Name, activity.Type)

	out.ActivityName = activity.Name
	out.Payload = s.mapper(activity)

	record, err := s.uploader.UploadActivity(ctx, out.Payload, targetToken)
	if err != nil {
		return s.fail(out, StepUpload, err)
	}

	out.Record = record
	out.Status = SyncStatusSucceeded
	out.Step = StepDone
	out.FinishedAt = s.now()
	s.logger.Printf("synced activity %q as %s (run=%s, log_id=%d)", activity.Name, out.Payload.ActivityName, out.RunID, record.LogID())
	return out
}

// acquireTokens refreshes both platform tokens concurrently. A failed refresh does
// not cancel the other one: Fitbit invalidates the old refresh token as soon as it
// accepts the exchange, so an abandoned response would lose the rotated token.
// When both fail the source failure is reported.
func (s *Service) acquireTokens(ctx context.Context) (AccessToken, AccessToken, SyncStep, error) {
	var (
		source, target       AccessToken
		sourceErr, targetErr error
		g                    errgroup.Group
	)

	g.Go(func() error {
		source, sourceErr = s.tokens.RefreshAccessToken(ctx, PlatformStrava)
		return nil
	})
	g.Go(func() error {
		target, targetErr = s.tokens.RefreshAccessToken(ctx, PlatformFitbit)
		return nil
	})
	_ = g.Wait()

	if sourceErr != nil {
		return AccessToken{}, AccessToken{}, StepSourceToken, sourceErr
	}
	if targetErr != nil {
		return AccessToken{}, AccessToken{}, StepTargetToken, targetErr
	}
	return source, target, "", nil
}

func (s *Service) fail(out SyncOutcome, step SyncStep, err error) SyncOutcome {
	out.Status = SyncStatusFailed
	out.Step = step
	out.Err = err
	out.FinishedAt = s.now()
	s.logger.Printf("sync failed (run=%s, activity=%s, step=%s, kind=%s): %v", out.RunID, out.ActivityID, step, KindOf(err), err)
	return out
}
