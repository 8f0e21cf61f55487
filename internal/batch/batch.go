// Package batch applies every job in a manifest with a bounded worker pool.
package batch

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/asynkron/strictpatch/internal/logging"
	"github.com/asynkron/strictpatch/internal/manifest"
	"github.com/asynkron/strictpatch/internal/metrics"
	"github.com/asynkron/strictpatch/pkg/patch"
)

// Options configures a Runner.
type Options struct {
	Workers      int
	OutputSuffix string
	Stream       bool
	DryRun       bool
	Logger       logging.Logger
	Metrics      metrics.Metrics
}

func (o *Options) setDefaults() {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Logger == nil {
		o.Logger = &logging.NoOpLogger{}
	}
	if o.Metrics == nil {
		o.Metrics = &metrics.NoOpMetrics{}
	}
}

// Outcome reports one manifest entry.
type Outcome struct {
	Entry    manifest.Entry
	Result   patch.Result
	Duration time.Duration
	Err      error
}

// OK reports whether the entry applied cleanly.
func (o Outcome) OK() bool { return o.Err == nil }

// Report summarises a batch run. Outcomes are in manifest order.
type Report struct {
	Outcomes []Outcome
}

// Failed counts entries that did not apply.
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}

// Err joins the errors of every failed entry, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// Runner executes manifests.
type Runner struct {
	opts Options
}

// NewRunner returns a Runner with defaults applied to opts.
func NewRunner(opts Options) *Runner {
	opts.setDefaults()
	return &Runner{opts: opts}
}

// Run applies every entry of m. Entries naming the same target form one job
// applied in manifest order; each job is all-or-nothing and a failing job does
// not stop or roll back the others. The returned error is non-nil only when
// ctx was cancelled.
func (r *Runner) Run(ctx context.Context, m *manifest.Manifest) (Report, error) {
	ctx = logging.WithRunID(ctx, logging.NewRunID())
	logger := r.opts.Logger.WithFields(logging.F("component", "batch"))
	jobs := groupByTarget(m)
	logger.Info(ctx, "batch started",
		logging.F("entries", len(m.Patches)),
		logging.F("jobs", len(jobs)),
		logging.F("workers", r.opts.Workers))

	report := Report{Outcomes: make([]Outcome, len(m.Patches))}
	for i, entry := range m.Patches {
		report.Outcomes[i] = Outcome{Entry: entry, Err: context.Canceled}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.runJob(gctx, logger, m, job, report.Outcomes)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	logger.Info(ctx, "batch finished", logging.F("entries", len(m.Patches)), logging.F("failed", report.Failed()))
	return report, nil
}

// groupByTarget returns entry indexes grouped by resolved target, in order of
// first appearance.
func groupByTarget(m *manifest.Manifest) [][]int {
	var jobs [][]int
	byTarget := make(map[string]int)
	for i, entry := range m.Patches {
		key := filepath.Clean(m.Resolve(entry.Target))
		if j, ok := byTarget[key]; ok {
			jobs[j] = append(jobs[j], i)
			continue
		}
		byTarget[key] = len(jobs)
		jobs = append(jobs, []int{i})
	}
	return jobs
}

// runJob writes one Outcome per entry in job into outcomes. Distinct jobs
// touch distinct indexes.
func (r *Runner) runJob(ctx context.Context, logger logging.Logger, m *manifest.Manifest, job []int, outcomes []Outcome) {
	first := m.Patches[job[0]]
	logger = logger.WithFields(logging.F("job", first.Label()))
	started := time.Now()

	var (
		patches []patch.FilePatch
		err     error
	)
	for _, idx := range job {
		entry := m.Patches[idx]
		var diff string
		if diff, err = m.ReadDiff(entry); err != nil {
			break
		}
		patches = append(patches, patch.FilePatch{Path: entry.Target, Diff: diff, Output: entry.Output})
	}

	var result patch.Result
	if err == nil {
		var results []patch.Result
		results, err = patch.ApplyFilesystem(ctx, patches, patch.FilesystemOptions{
			WorkingDir:   m.WorkingDir,
			OutputSuffix: r.opts.OutputSuffix,
			DryRun:       r.opts.DryRun,
			Buffered:     !r.opts.Stream,
		})
		if err == nil && len(results) > 0 {
			result = results[0]
		}
	}
	duration := time.Since(started)
	for _, idx := range job {
		outcomes[idx] = Outcome{Entry: m.Patches[idx], Result: result, Duration: duration, Err: err}
	}

	r.opts.Metrics.RecordApply(duration, result.Bytes, err == nil)
	if err != nil {
		code := patch.CodeOf(err)
		if code == "" {
			code = patch.CodeIO
		}
		r.opts.Metrics.RecordFailure(code)
		logger.Error(ctx, "job failed", err, logging.F("code", code), logging.F("entries", len(job)))
		return
	}
	logger.Debug(ctx, "job applied",
		logging.F("status", result.Status),
		logging.F("path", result.Path),
		logging.F("bytes", result.Bytes),
		logging.F("duration", duration))
}
