package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/freshfold/freshfold-backend/internal/subscriptions"
	"github.com/freshfold/freshfold-backend/pkg/db/models"
	"github.com/freshfold/freshfold-backend/pkg/enums"
	"github.com/freshfold/freshfold-backend/pkg/logger"
	"github.com/freshfold/freshfold-backend/pkg/outbox"
)

const defaultPeriodRollLimit = 250

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// BillingPeriodRollJobParams configures the period roll cron job.
type BillingPeriodRollJobParams struct {
	Logger *logger.Logger
	DB     txRunner
	Repo   subscriptions.Repository
	Outbox outboxEmitter
	// Lag delays the roll so that in-flight work against the old period
	// settles before the allowance resets.
	Lag   time.Duration
	Limit int
	Now   func() time.Time
}

// NewBillingPeriodRollJob builds the job that advances lapsed billing periods.
func NewBillingPeriodRollJob(params BillingPeriodRollJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultPeriodRollLimit
	}
	return &billingPeriodRollJob{
		logg:   params.Logger,
		db:     params.DB,
		repo:   params.Repo,
		outbox: params.Outbox,
		lag:    params.Lag,
		limit:  limit,
		now:    now,
	}, nil
}

type billingPeriodRollJob struct {
	logg   *logger.Logger
	db     txRunner
	repo   subscriptions.Repository
	outbox outboxEmitter
	lag    time.Duration
	limit  int
	now    func() time.Time
}

func (j *billingPeriodRollJob) Name() string { return "billing-period-roll" }

func (j *billingPeriodRollJob) Run(ctx context.Context) error {
	asOf := j.now().UTC().Add(-j.lag)
	lapsed, err := j.repo.ListLapsedActive(ctx, asOf, j.limit)
	if err != nil {
		return fmt.Errorf("list lapsed subscriptions: %w", err)
	}
	var errs error
	rolled := 0
	for i := range lapsed {
		if err := j.rollSubscription(ctx, lapsed[i].ID, asOf); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("subscription %s: %w", lapsed[i].ID, err))
			continue
		}
		rolled++
	}
	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(lapsed),
		"rolled":     rolled,
	})
	j.logg.Info(reportCtx, "billing period roll complete")
	return errs
}

func (j *billingPeriodRollJob) rollSubscription(ctx context.Context, id uuid.UUID, asOf time.Time) error {
	logCtx := j.logg.WithSubscriptionID(ctx, id.String())
	return j.db.WithTx(logCtx, func(tx *gorm.DB) error {
		repo := j.repo.WithTx(tx)
		if err := repo.Lock(logCtx, id); err != nil {
			return err
		}
		sub, err := repo.FindByID(logCtx, id)
		if err != nil {
			return err
		}
		if sub == nil || sub.Status != enums.SubscriptionStatusActive {
			return nil
		}
		if asOf.Before(sub.CurrentPeriodEnd) {
			// Another worker rolled it between the list and the lock.
			return nil
		}
		start, end := nextPeriod(sub, asOf)
		if err := repo.AdvancePeriod(logCtx, id, start, end); err != nil {
			return err
		}
		if err := j.outbox.Emit(logCtx, tx, outbox.DomainEvent{
			EventType:     enums.EventBillingPeriodRolled,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sub.ID,
			Data: periodRollEventPayload{
				SubscriptionID:    sub.ID,
				UserID:            sub.UserID,
				PreviousPeriodEnd: sub.CurrentPeriodEnd,
				NewPeriodStart:    start,
				NewPeriodEnd:      end,
			},
		}); err != nil {
			return err
		}
		doneCtx := j.logg.WithFields(logCtx, map[string]any{
			"period_start": start,
			"period_end":   end,
		})
		j.logg.Info(doneCtx, "billing period rolled")
		return nil
	})
}

type periodRollEventPayload struct {
	SubscriptionID    uuid.UUID `json:"subscription_id"`
	UserID            uuid.UUID `json:"user_id"`
	PreviousPeriodEnd time.Time `json:"previous_period_end"`
	NewPeriodStart    time.Time `json:"new_period_start"`
	NewPeriodEnd      time.Time `json:"new_period_end"`
}

// nextPeriod advances the period by calendar months until it covers asOf.
// A subscription that lapsed several cycles ago rolls forward in one pass
// without emitting an event per skipped cycle.
func nextPeriod(sub *models.Subscription, asOf time.Time) (time.Time, time.Time) {
	start := sub.CurrentPeriodStart
	end := sub.CurrentPeriodEnd
	for !asOf.Before(end) {
		start = end
		end = end.AddDate(0, 1, 0)
	}
	return start, end
}
