// Package radar waits for the next event on a terminal that can only be polled.
//
// A wait takes a baseline (the newest qualifying event right now), then re-searches the
// event log on a fixed cadence until the newest qualifying event differs from it.
package radar

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"hik-access-bridge/internal/device"
	"hik-access-bridge/internal/models"

	"go.uber.org/zap"
)

// ErrTimeout no new qualifying event within the attempt budget.
var ErrTimeout = errors.New("radar: no new event before timeout")

// EventSearcher the device capability the radar polls.
type EventSearcher interface {
	SearchEvents(ctx context.Context, q device.EventQuery) ([]models.DeviceEvent, error)
}

// Match decides whether an event qualifies.
type Match func(models.DeviceEvent) bool

// MatchAny every event qualifies.
func MatchAny(models.DeviceEvent) bool { return true }

// MatchCode only events whose minor code is code.
func MatchCode(code int) Match {
	return func(e models.DeviceEvent) bool { return e.Minor == code }
}

// Options poll budget and search window.
type Options struct {
	Attempts   int
	Delay      time.Duration
	MaxResults int
	Start      string
	End        string
	Match      Match
}

// Radar holds no per-wait state; concurrent Waits are independent.
type Radar struct {
	searcher EventSearcher
	opts     Options
	logger   *zap.Logger
	after    func(time.Duration) <-chan time.Time
}

func New(searcher EventSearcher, opts Options, logger *zap.Logger) *Radar {
	if opts.Attempts <= 0 {
		opts.Attempts = 20
	}
	if opts.Delay <= 0 {
		opts.Delay = 1500 * time.Millisecond
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 30
	}
	if opts.Match == nil {
		opts.Match = MatchAny
	}
	return &Radar{
		searcher: searcher,
		opts:     opts,
		logger:   logger.Named("radar"),
		after:    time.After,
	}
}

// Budget upper bound of a Wait that sees no new event.
func (r *Radar) Budget() time.Duration {
	return time.Duration(r.opts.Attempts) * r.opts.Delay
}

// Wait blocks until a qualifying event newer than the baseline appears, the attempts run
// out (ErrTimeout) or ctx is done (ctx.Err()).
func (r *Radar) Wait(ctx context.Context) (models.DeviceEvent, error) {
	baseline, haveBaseline := r.newest(ctx)
	if err := ctx.Err(); err != nil {
		return models.DeviceEvent{}, err
	}
	r.logger.Debug("Radar armed",
		zap.Bool("baseline_known", haveBaseline),
		zap.String("baseline", baseline),
		zap.Int("attempts", r.opts.Attempts),
	)

	for attempt := 1; attempt <= r.opts.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			return models.DeviceEvent{}, ctx.Err()
		case <-r.after(r.opts.Delay):
		}

		events, err := r.searcher.SearchEvents(ctx, r.query())
		if err != nil {
			if ctx.Err() != nil {
				return models.DeviceEvent{}, ctx.Err()
			}
			r.logger.Debug("Radar attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		candidate, ok := r.firstQualifying(events)
		if !haveBaseline {
			// the baseline query failed; the first good answer becomes the baseline
			haveBaseline = true
			if ok {
				baseline = identify(candidate)
			}
			continue
		}
		if !ok {
			continue
		}
		if id := identify(candidate); id != baseline {
			r.logger.Info("Radar detected new event",
				zap.Int("attempt", attempt),
				zap.Int("minor", candidate.Minor),
				zap.String("time", candidate.RawTime),
			)
			return candidate, nil
		}
	}

	return models.DeviceEvent{}, fmt.Errorf("%w (%d attempts, %s)", ErrTimeout, r.opts.Attempts, r.Budget())
}

// newest returns the baseline identifier; "" means no qualifying event exists yet.
// false means the terminal could not be asked.
func (r *Radar) newest(ctx context.Context) (string, bool) {
	events, err := r.searcher.SearchEvents(ctx, r.query())
	if err != nil {
		r.logger.Debug("Radar baseline query failed", zap.Error(err))
		return "", false
	}
	if e, ok := r.firstQualifying(events); ok {
		return identify(e), true
	}
	return "", true
}

func (r *Radar) query() device.EventQuery {
	return device.EventQuery{
		MaxResults: r.opts.MaxResults,
		Start:      r.opts.Start,
		End:        r.opts.End,
	}
}

// firstQualifying events arrive newest first.
func (r *Radar) firstQualifying(events []models.DeviceEvent) (models.DeviceEvent, bool) {
	for _, e := range events {
		if r.opts.Match(e) {
			return e, true
		}
	}
	return models.DeviceEvent{}, false
}

// identify prefers the capture picture, which is unique per event.
func identify(e models.DeviceEvent) string {
	if e.PictureURL != "" {
		return e.PictureURL
	}
	if e.SerialNo > 0 {
		return "serial:" + strconv.FormatInt(e.SerialNo, 10)
	}
	return strconv.Itoa(e.Minor) + "@" + e.RawTime
}
