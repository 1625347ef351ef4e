package backtest

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/strategies"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Job is one (series, strategy, range) combination.
type Job struct {
	Name     string
	Series   *market.Series
	Strategy strategies.Strategy
	Start    time.Time
	End      time.Time
}

type JobResult struct {
	Job    Job
	Result *Result
	Err    error
}

// Runner fans jobs out over a bounded number of goroutines. Every job gets its
// own run state; only the Engine and the strategies are shared, so strategies
// must not keep per-run state.
type Runner struct {
	Engine  *Engine
	Workers int // <= 0 means GOMAXPROCS
}

// Run executes every job and returns the results in job order. A failed job
// is reported in its JobResult and does not stop the others; only
// cancellation of ctx is returned as an error.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]JobResult, error) {
	if r.Engine == nil {
		return nil, errors.New("backtest: runner has no engine")
	}
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]JobResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, job := range jobs {
		i := i
		job := job
		out[i].Job = job
		g.Go(func() error {
			res, err := r.Engine.Run(gctx, job.Strategy, job.Series, job.Start, job.End)
			out[i].Result, out[i].Err = res, err
			if err != nil {
				log.WithContext(gctx).WithField("job", job.Name).WithError(err).Warn("backtest job failed")
			}
			return nil
		})
	}
	_ = g.Wait()
	return out, ctx.Err()
}
