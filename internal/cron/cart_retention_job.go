package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/aoinlabs/storefront-backend/pkg/enums"
	"github.com/aoinlabs/storefront-backend/pkg/logger"
	"github.com/aoinlabs/storefront-backend/pkg/outbox"
)

const cartRetentionDays = 30

type CartRetentionJobParams struct {
	Logger     *logger.Logger
	Repository cartRetentionRepo
	Tx         txRunner
	Events     eventEmitter
	Retention  int
}

type cartRetentionRepo interface {
	ExpireStaleActiveTx(tx *gorm.DB, cutoff time.Time) ([]uuid.UUID, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

func NewCartRetentionJob(params CartRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = cartRetentionDays
	}
	return &cartRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		tx:        params.Tx,
		events:    params.Events,
		retention: retention,
		now:       time.Now,
	}, nil
}

type cartRetentionJob struct {
	logg      *logger.Logger
	repo      cartRetentionRepo
	tx        txRunner
	events    eventEmitter
	retention int
	now       func() time.Time
}

func (j *cartRetentionJob) Name() string { return "cart-retention" }

// Run expires active carts untouched past the retention window, emitting a
// cart_expired event per cart in the same transaction, then purges carts that
// have already been expired for a full window. Both steps run even if one
// fails so a bad expire pass cannot starve the purge.
func (j *cartRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)

	var errs error
	var expired int
	err := j.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ids, err := j.repo.ExpireStaleActiveTx(tx, cutoff)
		if err != nil {
			return fmt.Errorf("expire stale carts: %w", err)
		}
		for _, id := range ids {
			event := outbox.DomainEvent{
				EventType:     enums.EventCartExpired,
				AggregateType: enums.AggregateCart,
				AggregateID:   id,
				Data:          map[string]any{"cart_id": id, "cutoff": cutoff},
				Version:       1,
			}
			if err := j.events.Emit(ctx, tx, event); err != nil {
				return fmt.Errorf("emit cart expired %s: %w", id, err)
			}
		}
		expired = len(ids)
		return nil
	})
	if err != nil {
		errs = multierr.Append(errs, err)
	}

	deleted, err := j.repo.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("delete expired carts: %w", err))
	}
	if errs != nil {
		return fmt.Errorf("cart retention: %w", errs)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_expired":   expired,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "cart retention cleanup complete")
	return nil
}
