package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"hik-access-bridge/internal/metrics"
	"hik-access-bridge/internal/models"
	"hik-access-bridge/internal/reconcile"

	"go.uber.org/zap"
)

// ErrSyncRunning a reconciliation run is already active.
var ErrSyncRunning = errors.New("a sync run is already in progress")

// Reconciler runs one reconciliation over a roster.
type Reconciler interface {
	Run(ctx context.Context, customers []models.CustomerRecord, progress reconcile.ProgressFunc) (models.SyncOutcome, error)
}

// CustomerLister roster source.
type CustomerLister interface {
	ListCustomers(ctx context.Context) ([]models.CustomerRecord, error)
}

// ProgressSink receives progress without blocking (see publisher.ProgressStream).
type ProgressSink interface {
	Offer(models.SyncProgress) bool
}

// SyncStatus snapshot for the presentation layer.
type SyncStatus struct {
	Running     bool                 `json:"running"`
	Progress    *models.SyncProgress `json:"progress,omitempty"`
	LastOutcome *models.SyncOutcome  `json:"lastOutcome,omitempty"`
	LastError   string               `json:"lastError,omitempty"`
}

// SyncJob allows one reconciliation run at a time; the terminal cannot take two writers.
type SyncJob struct {
	engine Reconciler
	roster CustomerLister
	sink   ProgressSink
	logger *zap.Logger

	mu      sync.Mutex
	running bool
	status  SyncStatus
	wg      sync.WaitGroup
}

// NewSyncJob sink may be nil.
func NewSyncJob(engine Reconciler, roster CustomerLister, sink ProgressSink, logger *zap.Logger) *SyncJob {
	return &SyncJob{
		engine: engine,
		roster: roster,
		sink:   sink,
		logger: logger.Named("sync_job"),
	}
}

// Start launches a run in the background bound to ctx.
func (j *SyncJob) Start(ctx context.Context) error {
	if !j.acquire() {
		return ErrSyncRunning
	}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		_, _ = j.run(ctx)
	}()
	return nil
}

// Run reconciles synchronously.
func (j *SyncJob) Run(ctx context.Context) (models.SyncOutcome, error) {
	if !j.acquire() {
		return models.SyncOutcome{}, ErrSyncRunning
	}
	return j.run(ctx)
}

// Wait blocks until a background run finishes.
func (j *SyncJob) Wait() { j.wg.Wait() }

// Status current snapshot.
func (j *SyncJob) Status() SyncStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	st := j.status
	if st.Progress != nil {
		p := *st.Progress
		st.Progress = &p
	}
	return st
}

func (j *SyncJob) acquire() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return false
	}
	j.running = true
	j.status.Running = true
	j.status.Progress = nil
	j.status.LastError = ""
	return true
}

// run assumes acquire succeeded.
func (j *SyncJob) run(ctx context.Context) (models.SyncOutcome, error) {
	defer func() {
		j.mu.Lock()
		j.running = false
		j.status.Running = false
		j.mu.Unlock()
	}()

	// a run always reads the roster fresh
	if c, ok := j.roster.(interface{ Invalidate() }); ok {
		c.Invalidate()
	}
	customers, err := j.roster.ListCustomers(ctx)
	if err != nil {
		j.logger.Error("Failed to load roster", zap.Error(err))
		j.setError(err)
		return models.SyncOutcome{}, fmt.Errorf("failed to load roster: %w", err)
	}

	outcome, err := j.engine.Run(ctx, customers, j.onProgress)
	for _, it := range outcome.Items {
		metrics.SyncItems.WithLabelValues(string(it.Status)).Inc()
	}

	j.mu.Lock()
	j.status.LastOutcome = &outcome
	if err != nil {
		j.status.LastError = err.Error()
	}
	j.mu.Unlock()
	return outcome, err
}

func (j *SyncJob) onProgress(p models.SyncProgress) {
	j.mu.Lock()
	j.status.Progress = &p
	j.mu.Unlock()
	if j.sink != nil && !j.sink.Offer(p) {
		j.logger.Debug("Dropped sync progress update", zap.Int("current", p.Current))
	}
}

func (j *SyncJob) setError(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status.LastError = err.Error()
}
