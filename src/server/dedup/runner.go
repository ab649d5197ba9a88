package dedup

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"github.com/softwareheritage/swh-dedup/src/internal/log"
	"github.com/softwareheritage/swh-dedup/src/internal/pctx"
	"github.com/softwareheritage/swh-dedup/src/internal/swhhash"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ContentDeduper processes one content id.
type ContentDeduper interface {
	Dedup(ctx context.Context, id swhhash.ID) (*Result, error)
}

// Stats counts what a Runner did.
type Stats struct {
	// Processed counts the ids handed to a worker, whatever the outcome.
	Processed int64
	NotFound  int64
	Failed    int64
	// Malformed counts input lines that are not content ids.
	Malformed int64
	// Repeated counts ids skipped because they were seen recently.
	Repeated       int64
	MethodsApplied int64
}

type stats struct {
	processed, notFound, failed, malformed, repeated, methodsApplied atomic.Int64
}

func (s *stats) snapshot() *Stats {
	return &Stats{
		Processed:      s.processed.Load(),
		NotFound:       s.notFound.Load(),
		Failed:         s.failed.Load(),
		Malformed:      s.malformed.Load(),
		Repeated:       s.repeated.Load(),
		MethodsApplied: s.methodsApplied.Load(),
	}
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers sets how many ids are processed concurrently.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithProgressEvery sets how many processed ids separate two progress messages.  0 disables
// them.
func WithProgressEvery(n int) RunnerOption {
	return func(r *Runner) {
		if n >= 0 {
			r.progressEvery = n
		}
	}
}

// WithRecentIDs sets how many recently dispatched ids are remembered to skip repeats.  0
// disables the check.
func WithRecentIDs(n int) RunnerOption {
	return func(r *Runner) {
		if n >= 0 {
			r.recentIDs = n
		}
	}
}

// Runner feeds content ids from a stream to a pool of workers.
type Runner struct {
	deduper       ContentDeduper
	workers       int
	progressEvery int
	recentIDs     int
}

// NewRunner returns a Runner over d.
func NewRunner(d ContentDeduper, opts ...RunnerOption) *Runner {
	r := &Runner{
		deduper:       d,
		workers:       1,
		progressEvery: 1000,
		recentIDs:     4096,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run dedups every hex content id read from in, one per line.  Blank lines are ignored and
// malformed lines are logged and skipped.  The failure of one id never stops the others; Run
// returns an error only if reading in fails or ctx is done.
func (r *Runner) Run(ctx context.Context, in io.Reader) (*Stats, error) {
	var recent *lru.Cache[swhhash.ID, struct{}]
	if r.recentIDs > 0 {
		var err error
		if recent, err = lru.New[swhhash.ID, struct{}](r.recentIDs); err != nil {
			return nil, errors.EnsureStack(err)
		}
	}
	st := &stats{}
	ids := make(chan swhhash.ID)
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer close(ids)
		return r.read(ctx, in, recent, st, ids)
	})
	for i := 0; i < r.workers; i++ {
		ctx := pctx.Child(ctx, "worker", pctx.WithFields(zap.Int("worker", i)))
		eg.Go(func() error {
			for id := range ids {
				r.process(ctx, id, st)
				if err := ctx.Err(); err != nil {
					return errors.EnsureStack(err)
				}
			}
			return nil
		})
	}
	err := eg.Wait()
	s := st.snapshot()
	log.Info(ctx, "dedup run finished",
		zap.Int64("processed", s.Processed),
		zap.Int64("notFound", s.NotFound),
		zap.Int64("failed", s.Failed),
		zap.Int64("malformed", s.Malformed),
		zap.Int64("repeated", s.Repeated),
		zap.Int64("methodsApplied", s.MethodsApplied))
	return s, err
}

func (r *Runner) read(ctx context.Context, in io.Reader, recent *lru.Cache[swhhash.ID, struct{}], st *stats, ids chan<- swhhash.ID) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, err := swhhash.Parse(line)
		if err != nil {
			log.Info(ctx, "skipping malformed content id", zap.String("line", line), zap.Error(err))
			st.malformed.Add(1)
			continue
		}
		if recent != nil {
			if seen, _ := recent.ContainsOrAdd(id, struct{}{}); seen {
				log.Debug(ctx, "skipping repeated content id", zap.Stringer("content", id))
				st.repeated.Add(1)
				continue
			}
		}
		select {
		case ids <- id:
		case <-ctx.Done():
			return errors.EnsureStack(context.Cause(ctx))
		}
	}
	return errors.Wrap(scanner.Err(), "read content ids")
}

func (r *Runner) process(ctx context.Context, id swhhash.ID, st *stats) {
	res, err := r.deduper.Dedup(ctx, id)
	n := st.processed.Add(1)
	switch {
	case err == nil:
		st.methodsApplied.Add(int64(len(res.Applied)))
		contentsMetric.WithLabelValues(outcomeDone).Inc()
		log.Debug(ctx, "content done", zap.Stringer("result", res))
	case errors.Is(err, ErrContentNotFound):
		st.notFound.Add(1)
		contentsMetric.WithLabelValues(outcomeNotFound).Inc()
		log.Info(ctx, "content not found, skipping", zap.Stringer("content", id))
	default:
		st.failed.Add(1)
		contentsMetric.WithLabelValues(outcomeFailed).Inc()
		if ctx.Err() == nil {
			log.Error(ctx, "dedup failed", zap.Stringer("content", id), zap.Error(err))
		}
	}
	if r.progressEvery > 0 && n%int64(r.progressEvery) == 0 {
		log.Info(ctx, "progress", zap.Int64("processed", n), zap.Stringer("content", id))
	}
}
