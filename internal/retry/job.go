package retry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/spenzahq/webhook-relay/internal/delivery"
	"github.com/spenzahq/webhook-relay/internal/events"
	"github.com/spenzahq/webhook-relay/pkg/db"
	"github.com/spenzahq/webhook-relay/pkg/db/models"
	pkgerrors "github.com/spenzahq/webhook-relay/pkg/errors"
	"github.com/spenzahq/webhook-relay/pkg/logger"
)

const jobName = "retry-failed-webhooks"

const defaultMaxAttempts = 3

// Dispatcher is the slice of the delivery dispatcher the retry sweep needs.
type Dispatcher interface {
	Deliver(ctx context.Context, sub *models.WebhookSubscription, payload json.RawMessage, attempt int) delivery.Result
}

// Job sweeps unprocessed events that failed at least once and re-attempts
// delivery, one event at a time. An event leaves the sweep either by being
// delivered or by reaching the retry ceiling, at which point its error is
// rewritten with a terminal message.
type Job struct {
	events      events.Repository
	dispatcher  Dispatcher
	logg        *logger.Logger
	maxAttempts int
	now         func() time.Time
}

// NewJob wires the retry sweep.
func NewJob(eventsRepo events.Repository, dispatcher Dispatcher, logg *logger.Logger, maxAttempts int) (*Job, error) {
	if eventsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "events repository required")
	}
	if dispatcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "delivery dispatcher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Job{
		events:      eventsRepo,
		dispatcher:  dispatcher,
		logg:        logg,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}, nil
}

// Name implements cron.Job.
func (j *Job) Name() string { return jobName }

// Run executes one sweep. Delivery failures are not errors at this level,
// they simply advance the event's retry count; only persistence problems are
// reported, aggregated so one bad row does not hide the rest.
func (j *Job) Run(ctx context.Context) error {
	rows, err := j.events.ListEligibleForRetry(ctx, j.maxAttempts)
	if err != nil {
		// A fresh environment may not have run migrations yet. The sweep
		// backs off instead of crash-looping the worker.
		if db.IsUndefinedTable(err) {
			j.logg.Warn(ctx, "webhook_events table missing, skipping retry sweep")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list retryable events")
	}
	if len(rows) == 0 {
		return nil
	}

	j.logg.Info(j.logg.WithField(ctx, "events", len(rows)), "retry sweep starting")

	var errs error
	for i := range rows {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		if err := j.retryOne(ctx, &rows[i]); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (j *Job) retryOne(ctx context.Context, event *models.WebhookEvent) error {
	ctx = j.logg.WithEventID(ctx, event.ID.String())
	ctx = j.logg.WithSubscriptionID(ctx, event.SubscriptionID.String())

	attempt := event.RetryCount + 1
	result := j.dispatcher.Deliver(ctx, event.Subscription, event.Payload, attempt)

	if result.Delivered() {
		updated, err := j.events.MarkProcessed(ctx, event.ID, event.RetryCount, j.now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark event processed")
		}
		if !updated {
			j.logg.Warn(ctx, "event row advanced concurrently, skipping processed write")
			return nil
		}
		j.logg.Info(ctx, "webhook retry delivered")
		return nil
	}

	newCount := event.RetryCount + 1
	message := result.ErrorMessage()
	if newCount >= j.maxAttempts {
		message = fmt.Sprintf("Max retry attempts reached. Last error: %s", result.ErrorMessage())
	}

	updated, err := j.events.MarkFailed(ctx, event.ID, event.RetryCount, newCount, message)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark event failed")
	}
	if !updated {
		j.logg.Warn(ctx, "event row advanced concurrently, skipping failure write")
		return nil
	}
	j.logg.Warn(j.logg.WithField(ctx, "attempt", attempt), "webhook retry failed")
	return nil
}
