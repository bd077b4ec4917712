// Package maintenance runs scheduled raw engine calls, such as index
// refreshes or cluster health probes, through a service's raw passthrough.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/leonunix/esdoc/internal/backend"
	"github.com/leonunix/esdoc/internal/config"
	"github.com/leonunix/esdoc/internal/logger"
	"github.com/leonunix/esdoc/internal/metrics"
)

// Caller is the subset of service operations a job needs.
type Caller interface {
	Raw(ctx context.Context, method string, params backend.RawParams) (json.RawMessage, error)
}

// Runner runs the configured jobs once or on their cron schedules.
type Runner struct {
	jobs    []config.JobConfig
	caller  Caller
	logger  *zap.Logger
	timeout time.Duration
}

// RunnerOption configures optional Runner behavior.
type RunnerOption func(*Runner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithTimeout bounds each job run. Defaults to 5 minutes.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// NewRunner creates a Runner. Every job schedule must parse as a standard
// five-field cron expression or a descriptor such as @hourly.
func NewRunner(jobs []config.JobConfig, caller Caller, opts ...RunnerOption) (*Runner, error) {
	for _, job := range jobs {
		if _, err := cron.ParseStandard(job.Schedule); err != nil {
			return nil, fmt.Errorf("job %s: invalid schedule %q: %w", job.Name, job.Schedule, err)
		}
	}
	r := &Runner{
		jobs:    jobs,
		caller:  caller,
		logger:  zap.NewNop(),
		timeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Jobs returns the configured jobs.
func (r *Runner) Jobs() []config.JobConfig {
	return r.jobs
}

// RunAll runs every job once, in order. A failed job does not stop the rest;
// all failures are returned joined.
func (r *Runner) RunAll(ctx context.Context) error {
	var errs []error
	for _, job := range r.jobs {
		if err := r.Run(ctx, job); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run runs one job and records its outcome.
func (r *Runner) Run(ctx context.Context, job config.JobConfig) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	l := logger.FromContext(ctx, r.logger).With(
		zap.String("job", job.Name),
		zap.String("method", job.Method),
		zap.Strings("indices", job.Indices),
	)
	start := time.Now()
	out, err := r.caller.Raw(ctx, job.Method, backend.RawParams{Index: job.Indices})
	if err != nil {
		metrics.MaintenanceRunsTotal.WithLabelValues(job.Name, "error").Inc()
		l.Error("maintenance job failed", zap.Duration("took", time.Since(start)), zap.Error(err))
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	metrics.MaintenanceRunsTotal.WithLabelValues(job.Name, "ok").Inc()
	l.Info("maintenance job completed", zap.Duration("took", time.Since(start)), zap.Int("response_bytes", len(out)))
	return nil
}

// Schedule registers every job with c. Runs use a background context;
// stopping c waits for running jobs.
func (r *Runner) Schedule(c *cron.Cron) error {
	for _, job := range r.jobs {
		_, err := c.AddFunc(job.Schedule, func() {
			_ = r.Run(context.Background(), job)
		})
		if err != nil {
			return fmt.Errorf("scheduling job %s: %w", job.Name, err)
		}
	}
	return nil
}
