package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/solespace/solespace-backend/pkg/logger"
)

const (
	defaultUnpaidOrderTTL = 24 * time.Hour
	defaultExpiryBatch    = 100
)

// UnpaidOrderJobParams configure the job that expires abandoned checkouts.
type UnpaidOrderJobParams struct {
	Logger *logger.Logger
	Orders unpaidOrderExpirer
	TTL    time.Duration
	Batch  int
}

type unpaidOrderExpirer interface {
	ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// NewUnpaidOrderJob builds the job that cancels pending orders whose payment
// never arrived, releasing their stock back to the catalog.
func NewUnpaidOrderJob(params UnpaidOrderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultUnpaidOrderTTL
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &unpaidOrderJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    ttl,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type unpaidOrderJob struct {
	logg   *logger.Logger
	orders unpaidOrderExpirer
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *unpaidOrderJob) Name() string { return "unpaid-order-expiry" }

// Run drains stale orders batch by batch until a short batch comes back.
func (j *unpaidOrderJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	total := 0
	for {
		n, err := j.orders.ExpireUnpaid(ctx, cutoff, j.batch)
		total += n
		if err != nil {
			return fmt.Errorf("expire unpaid orders: %w", err)
		}
		if n < j.batch {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"ttl":     j.ttl.String(),
		"expired": total,
	})
	j.logg.Info(logCtx, "unpaid order expiry complete")
	return nil
}
