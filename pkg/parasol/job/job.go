// Package job runs the batch import loop in the background: fetch a page
// from the source, import each record, acknowledge, sleep, repeat until a
// page makes no progress or a stop is requested.
package job

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/norbert12x/parasol/pkg/parasol"
	"github.com/norbert12x/parasol/pkg/parasol/internalerr"
)

const (
	DefaultPageSize = 100
	DefaultInterval = 2 * time.Second
)

// Source pages through pending records. Acknowledged ids are removed on the
// source side; Acknowledge returns how many were deleted.
type Source interface {
	FetchPage(ctx context.Context, region string, limit int) ([]parasol.Record, error)
	Acknowledge(ctx context.Context, ids []string) (int, error)
}

// Importer persists one record.
type Importer interface {
	Import(ctx context.Context, r parasol.Record) (parasol.Result, error)
}

// Recorder observes job progress. Item results are "imported", "skipped"
// or "error".
type Recorder interface {
	ItemProcessed(result string)
	BatchCompleted()
	JobRunning(running bool)
}

// Options configures a Manager
type Options struct {
	Source   Source
	Importer Importer
	PageSize int
	Interval time.Duration
	Logger   *zap.Logger
	Recorder Recorder
	Now      func() time.Time
}

// Status is a point-in-time snapshot of the job.
type Status struct {
	Running     bool       `json:"running"`
	Stopping    bool       `json:"stopping"`
	RunID       string     `json:"runId,omitempty"`
	Region      string     `json:"region,omitempty"`
	Imported    int        `json:"imported"`
	Deleted     int        `json:"deleted"`
	Errors      int        `json:"errors"`
	Skipped     int        `json:"skipped"`
	Batches     int        `json:"batches"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	LastBatchAt *time.Time `json:"lastBatchAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}

// Manager owns the single background import run of a process.
type Manager struct {
	source   Source
	importer Importer
	pageSize int
	interval time.Duration
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time

	mu      sync.Mutex
	status  Status
	stop    chan struct{}
	done    chan struct{}
	entropy *ulid.MonotonicEntropy
}

// New creates an idle Manager.
func New(opts Options) *Manager {
	m := &Manager{
		source:   opts.Source,
		importer: opts.Importer,
		pageSize: opts.PageSize,
		interval: opts.Interval,
		logger:   opts.Logger,
		recorder: opts.Recorder,
		now:      opts.Now,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
	if m.pageSize <= 0 {
		m.pageSize = DefaultPageSize
	}
	if m.interval <= 0 {
		m.interval = DefaultInterval
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Start launches a run for region ("" for all regions) and returns
// immediately. The run does not inherit ctx's cancellation; use Stop.
func (m *Manager) Start(ctx context.Context, region string) error {
	if m.source == nil || m.importer == nil {
		return fmt.Errorf("job: source and importer required: %w", internalerr.ErrInvalidConfig)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.Running {
		return internalerr.ErrAlreadyRunning
	}

	started := m.now()
	runID := ulid.MustNew(ulid.Timestamp(started), m.entropy).String()
	m.status = Status{
		Running:   true,
		RunID:     runID,
		Region:    region,
		StartedAt: &started,
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	r := &run{
		m:      m,
		ctx:    context.WithoutCancel(ctx),
		region: region,
		stop:   m.stop,
		logger: m.logger.With(zap.String("run_id", runID), zap.String("region", region)),
	}
	m.setRunning(true)
	go r.execute(m.done)

	r.logger.Info("import job started")
	return nil
}

// Stop asks the running job to finish. The item in progress completes and
// no further page is fetched.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.status.Running {
		return internalerr.ErrNotRunning
	}
	if !m.status.Stopping {
		m.status.Stopping = true
		close(m.stop)
	}
	return nil
}

// Status returns a snapshot of the current or last run.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Wait blocks until the current run finishes or ctx is done. It returns
// immediately when no run was ever started.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) setRunning(running bool) {
	if m.recorder != nil {
		m.recorder.JobRunning(running)
	}
}

type counts struct {
	imported, deleted, errors, skipped, batches int
}

// publish copies the loop-owned counters into the shared status.
func (m *Manager) publish(c counts, lastBatch time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Imported = c.imported
	m.status.Deleted = c.deleted
	m.status.Errors = c.errors
	m.status.Skipped = c.skipped
	m.status.Batches = c.batches
	m.status.LastBatchAt = &lastBatch
}

func (m *Manager) finish(c counts, err error) {
	finished := m.now()

	m.mu.Lock()
	m.status.Imported = c.imported
	m.status.Deleted = c.deleted
	m.status.Errors = c.errors
	m.status.Skipped = c.skipped
	m.status.Batches = c.batches
	m.status.Running = false
	m.status.Stopping = false
	m.status.FinishedAt = &finished
	if err != nil {
		m.status.LastError = err.Error()
	}
	m.mu.Unlock()

	m.setRunning(false)
}

// run is the state of one background execution. Counters are owned by the
// loop goroutine and only published through the Manager.
type run struct {
	m      *Manager
	ctx    context.Context
	region string
	stop   <-chan struct{}
	logger *zap.Logger
	counts counts
}

func (r *run) execute(done chan<- struct{}) {
	defer close(done)

	err := r.loop()
	r.m.finish(r.counts, err)

	fields := []zap.Field{
		zap.Int("imported", r.counts.imported),
		zap.Int("deleted", r.counts.deleted),
		zap.Int("errors", r.counts.errors),
		zap.Int("skipped", r.counts.skipped),
		zap.Int("batches", r.counts.batches),
	}
	if err != nil {
		r.logger.Error("import job failed", append(fields, zap.Error(err))...)
		return
	}
	r.logger.Info("import job finished", fields...)
}

func (r *run) loop() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job: panic: %v", p)
		}
	}()

	for {
		if r.stopped() {
			return nil
		}

		progress, err := r.batch()
		if err != nil {
			return err
		}
		if !progress {
			return nil
		}

		if r.stopped() {
			return nil
		}
		timer := time.NewTimer(r.m.interval)
		select {
		case <-r.stop:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// batch processes one page. It reports whether the page made progress,
// that is imported or deleted anything.
func (r *run) batch() (bool, error) {
	recs, err := r.m.source.FetchPage(r.ctx, r.region, r.m.pageSize)
	if err != nil {
		return false, fmt.Errorf("fetch page: %w", err)
	}
	r.counts.batches++

	imported := 0
	ack := make([]string, 0, len(recs))
	for _, rec := range recs {
		if r.stopped() {
			break
		}
		switch r.importOne(rec) {
		case "imported":
			imported++
			ack = append(ack, rec.KRS)
		case "skipped":
			if rec.KRS != "" {
				ack = append(ack, rec.KRS)
			}
		}
	}
	r.counts.imported += imported

	deleted := 0
	if len(ack) > 0 {
		deleted, err = r.m.source.Acknowledge(r.ctx, ack)
		if err != nil {
			r.m.publish(r.counts, r.m.now())
			return false, fmt.Errorf("acknowledge: %w", err)
		}
	}
	r.counts.deleted += deleted

	r.m.publish(r.counts, r.m.now())
	if r.m.recorder != nil {
		r.m.recorder.BatchCompleted()
	}

	r.logger.Debug("batch completed",
		zap.Int("fetched", len(recs)),
		zap.Int("imported", imported),
		zap.Int("deleted", deleted))

	return imported > 0 || deleted > 0, nil
}

func (r *run) importOne(rec parasol.Record) string {
	_, err := r.m.importer.Import(r.ctx, rec)
	result := "imported"
	switch {
	case err == nil:
	case internalerr.IsSkippable(err):
		result = "skipped"
		r.counts.skipped++
		r.logger.Info("record skipped", zap.String("krs", rec.KRS), zap.Error(err))
	default:
		result = "error"
		r.counts.errors++
		r.logger.Warn("record import failed", zap.String("krs", rec.KRS), zap.Error(err))
	}
	if r.m.recorder != nil {
		r.m.recorder.ItemProcessed(result)
	}
	return result
}

func (r *run) stopped() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}
