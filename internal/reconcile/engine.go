// Package reconcile writes the customer roster into the terminal's user registry.
//
// Items are processed strictly one at a time: the terminal's embedded web server does not
// cope with concurrent writes. A failed item is recorded and never retried within the run.
package reconcile

import (
	"context"
	"errors"
	"time"

	"hik-access-bridge/internal/device"
	"hik-access-bridge/internal/models"
	"hik-access-bridge/internal/timeutil"

	"go.uber.org/zap"
)

// UserUpserter device capability the engine drives.
type UserUpserter interface {
	UpsertUser(ctx context.Context, rec models.DeviceUserRecord) (device.UpsertResult, error)
}

// ProgressFunc is called after every item. It must not block.
type ProgressFunc func(models.SyncProgress)

// Options pacing and record defaults.
type Options struct {
	BatchSize    int
	BatchPause   time.Duration
	FailurePause time.Duration
	Defaults     RecordDefaults
}

// Engine reconciliation runner.
type Engine struct {
	users  UserUpserter
	opts   Options
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

func NewEngine(users UserUpserter, opts Options, logger *zap.Logger) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	return &Engine{
		users:  users,
		opts:   opts,
		logger: logger.Named("reconcile"),
		sleep:  timeutil.SleepContext,
		now:    time.Now,
	}
}

// Run upserts every customer and returns the tally. Individual failures never stop the
// run; the returned error is set only when ctx ends it early, in which case the outcome
// covers the items processed so far.
func (e *Engine) Run(ctx context.Context, customers []models.CustomerRecord, progress ProgressFunc) (models.SyncOutcome, error) {
	outcome := models.SyncOutcome{
		Total:     len(customers),
		Items:     make([]models.SyncItemResult, 0, len(customers)),
		StartedAt: e.now(),
	}
	e.logger.Info("Reconciliation started", zap.Int("total", len(customers)))

	for i, customer := range customers {
		if i > 0 && i%e.opts.BatchSize == 0 {
			if err := e.sleep(ctx, e.opts.BatchPause); err != nil {
				return e.cancelled(outcome, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return e.cancelled(outcome, err)
		}

		rec := BuildUserRecord(customer, e.opts.Defaults)
		item, netFailure := e.reconcileOne(ctx, rec)
		outcome.Items = append(outcome.Items, item)
		if item.Status == models.SyncItemFailed {
			outcome.Failed++
		} else {
			outcome.Succeeded++
		}

		if progress != nil {
			progress(models.SyncProgress{Current: i + 1, Total: len(customers), CurrentName: rec.Name})
		}

		if netFailure {
			if err := e.sleep(ctx, e.opts.FailurePause); err != nil {
				return e.cancelled(outcome, err)
			}
		}
	}

	outcome.FinishedAt = e.now()
	e.logger.Info("Reconciliation finished",
		zap.Int("total", outcome.Total),
		zap.Int("succeeded", outcome.Succeeded),
		zap.Int("failed", outcome.Failed),
		zap.Int("created", outcome.Created()),
		zap.Int("updated", outcome.Updated()),
		zap.Duration("elapsed", outcome.FinishedAt.Sub(outcome.StartedAt)),
	)
	return outcome, nil
}

// reconcileOne reports whether a failure was transport-level, which earns a longer pause.
func (e *Engine) reconcileOne(ctx context.Context, rec models.DeviceUserRecord) (models.SyncItemResult, bool) {
	item := models.SyncItemResult{EmployeeNo: rec.EmployeeNo, Name: rec.Name}
	if rec.EmployeeNo == "" {
		item.Status = models.SyncItemFailed
		item.Error = "empty customer id"
		e.logger.Warn("Skipping customer without id", zap.String("name", rec.Name))
		return item, false
	}

	res, err := e.users.UpsertUser(ctx, rec)
	if err != nil {
		item.Status = models.SyncItemFailed
		if de, ok := device.AsError(err); ok {
			item.Error = de.Diagnostic()
		} else {
			item.Error = err.Error()
		}
		e.logger.Warn("Customer sync failed",
			zap.String("employee_no", rec.EmployeeNo),
			zap.Error(err),
		)
		return item, errors.Is(err, device.ErrUnreachable)
	}

	if res == device.Updated {
		item.Status = models.SyncItemUpdated
	} else {
		item.Status = models.SyncItemCreated
	}
	e.logger.Debug("Customer synced",
		zap.String("employee_no", rec.EmployeeNo),
		zap.String("result", res.String()),
	)
	return item, false
}

func (e *Engine) cancelled(outcome models.SyncOutcome, err error) (models.SyncOutcome, error) {
	outcome.Cancelled = true
	outcome.FinishedAt = e.now()
	e.logger.Warn("Reconciliation cancelled",
		zap.Int("processed", len(outcome.Items)),
		zap.Int("total", outcome.Total),
	)
	return outcome, err
}
