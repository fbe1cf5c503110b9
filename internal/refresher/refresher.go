// Package refresher runs the risk factor refresh on a cron schedule, off the
// request path.
package refresher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/seenimoa/routerisk/internal/risk"
)

// Target is what the refresher refreshes; *risk.Engine satisfies it.
type Target interface {
	Refresh(ctx context.Context) (*risk.Snapshot, error)
}

// Refresher schedules Target.Refresh. Overlapping runs are skipped.
type Refresher struct {
	cron   *cron.Cron
	target Target
	spec   string
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	onRefresh []func(*risk.Snapshot, error)
	started   bool
	stopped   bool
	manual    sync.WaitGroup
}

// New creates a refresher for spec, a standard cron expression or a
// descriptor such as "@every 10m".
func New(target Target, spec string, logger *slog.Logger) (*Refresher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Refresher{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		target: target,
		spec:   spec,
		logger: logger,
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	if _, err := r.cron.AddFunc(spec, r.run); err != nil {
		return nil, fmt.Errorf("add refresh schedule %q: %w", spec, err)
	}
	return r, nil
}

// OnRefresh registers fn to be called after every scheduled run with its
// result. Must be called before Start.
func (r *Refresher) OnRefresh(fn func(*risk.Snapshot, error)) {
	r.mu.Lock()
	r.onRefresh = append(r.onRefresh, fn)
	r.mu.Unlock()
}

// Start begins the schedule. It is a no-op if already started.
func (r *Refresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.cron.Start()
	r.logger.Info("refresher started", "schedule", r.spec)
}

// RunNow triggers one refresh synchronously, outside the schedule. It is a
// no-op once Stop has been called.
func (r *Refresher) RunNow() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.manual.Add(1)
	r.mu.Unlock()
	defer r.manual.Done()

	r.run()
}

// Stop halts the schedule, cancels in-flight runs (scheduled or RunNow),
// and waits for them to finish or ctx to expire.
func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	stopCtx := r.cron.Stop()
	r.cancel()

	done := make(chan struct{})
	go func() {
		<-stopCtx.Done()
		r.manual.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("refresher stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("refresher stop timeout")
		return ctx.Err()
	}
}

func (r *Refresher) run() {
	snap, err := r.target.Refresh(r.ctx)
	if err != nil {
		r.logger.Warn("scheduled refresh failed", "error", err)
	} else {
		r.logger.Info("scheduled refresh complete", "cycle_id", snap.CycleID, "factors", len(snap.Factors))
	}

	r.mu.Lock()
	hooks := r.onRefresh
	r.mu.Unlock()
	for _, fn := range hooks {
		fn(snap, err)
	}
}
