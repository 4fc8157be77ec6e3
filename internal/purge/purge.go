// Package purge removes dormant accounts in bulk.
package purge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/congo-pay/reserve/internal/account"
	"github.com/congo-pay/reserve/internal/logging"
	"github.com/congo-pay/reserve/internal/notification"
)

// DefaultWorkers bounds the number of accounts examined concurrently when the
// coordinator is built with a non-positive worker count.
const DefaultWorkers = 4

// ErrInvalidThreshold is returned for a negative PurgeUnder threshold.
var ErrInvalidThreshold = errors.New("invalid purge threshold")

// Report summarises a sweep.
type Report struct {
	Scanned int64 `json:"scanned"`
	Purged  int64 `json:"purged"`
}

// Coordinator sweeps the account store and deletes whole accounts whose every
// balance qualifies.
type Coordinator struct {
	store    account.Store
	notifier notification.Notifier
	logger   *slog.Logger
	workers  int
}

// NewCoordinator builds a purge coordinator. notifier may be nil.
func NewCoordinator(store account.Store, notifier notification.Notifier, logger *slog.Logger, workers int) *Coordinator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Coordinator{store: store, notifier: notifier, logger: logger, workers: workers}
}

// PurgeDefault removes accounts whose balances are all exactly zero.
func (c *Coordinator) PurgeDefault(ctx context.Context) (Report, error) {
	return c.sweep(ctx, func(v decimal.Decimal) bool { return v.IsZero() })
}

// PurgeUnder removes accounts whose balances are all at or below threshold.
func (c *Coordinator) PurgeUnder(ctx context.Context, threshold decimal.Decimal) (Report, error) {
	if threshold.IsNegative() {
		return Report{}, fmt.Errorf("%w: %s", ErrInvalidThreshold, threshold)
	}
	return c.sweep(ctx, func(v decimal.Decimal) bool { return v.LessThanOrEqual(threshold) })
}

// sweep visits the accounts present when it starts. Accounts purged before a
// failure stay purged.
func (c *Coordinator) sweep(ctx context.Context, qualifies func(decimal.Decimal) bool) (Report, error) {
	var scanned, purged atomic.Int64
	everyBalance := func(balances map[account.Key]decimal.Decimal) bool {
		for _, v := range balances {
			if !qualifies(v) {
				return false
			}
		}
		return true
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for id := range c.store.Accounts(ctx) {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			scanned.Add(1)
			removed, err := c.store.DeleteIf(gctx, id, everyBalance)
			switch {
			case errors.Is(err, account.ErrNoSuchAccount):
				return nil
			case err != nil:
				return fmt.Errorf("purge %s: %w", id, err)
			case !removed:
				return nil
			}
			purged.Add(1)
			c.announce(gctx, id)
			return nil
		})
	}
	err := g.Wait()

	report := Report{Scanned: scanned.Load(), Purged: purged.Load()}
	if err != nil {
		c.logger.ErrorContext(ctx, "purge aborted",
			slog.Int64("scanned", report.Scanned),
			slog.Int64("purged", report.Purged),
			slog.Any("error", err),
		)
		return report, err
	}
	c.logger.InfoContext(ctx, "purge completed",
		slog.Int64("scanned", report.Scanned),
		slog.Int64("purged", report.Purged),
	)
	return report, nil
}

func (c *Coordinator) announce(ctx context.Context, id account.ID) {
	if c.notifier == nil {
		return
	}
	_ = c.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindAccountPurged,
		Destination: id.String(),
		Body:        "Your account was removed by a purge sweep",
	})
}
