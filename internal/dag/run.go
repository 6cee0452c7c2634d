package dag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"kaggleelt/internal/metrics"
)

// Status is the outcome of one task.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusFailed         Status = "failed"
	StatusUpstreamFailed Status = "upstream_failed"
)

// TaskResult records one task execution.
type TaskResult struct {
	ID       string
	Status   Status
	Duration time.Duration
	Err      error
}

// Report is the outcome of a graph run, in task insertion order.
type Report struct {
	Graph   string
	Results []TaskResult
}

// Err aggregates the errors of failed tasks, or returns nil when every task
// succeeded.
func (r Report) Err() error {
	var merr *multierror.Error
	for _, res := range r.Results {
		switch res.Status {
		case StatusFailed:
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", res.ID, res.Err))
		case StatusUpstreamFailed:
			merr = multierror.Append(merr, fmt.Errorf("%s: %s", res.ID, StatusUpstreamFailed))
		}
	}
	return merr.ErrorOrNil()
}

// Result returns the result for task id.
func (r Report) Result(id string) (TaskResult, bool) {
	for _, res := range r.Results {
		if res.ID == id {
			return res, true
		}
	}
	return TaskResult{}, false
}

// Options tune Run.
type Options struct {
	// Parallelism bounds concurrently running tasks. Values below 1 mean 1.
	Parallelism int
}

// Run executes every task of g once all of its upstreams succeeded.
// Independent chains run concurrently. A failed task does not stop unrelated
// tasks; its downstream tasks are not run and are reported as
// upstream_failed. The returned error is non-nil only for an invalid graph;
// task failures are reported through Report.Err.
func Run(ctx context.Context, g *Graph, opts Options) (Report, error) {
	if err := g.Validate(); err != nil {
		return Report{Graph: g.ID}, err
	}
	limit := max(opts.Parallelism, 1)

	var (
		mu      sync.Mutex
		results = make(map[string]TaskResult, len(g.order))
		done    = make(chan string, len(g.order))
		pending = make(map[string]int, len(g.order))
		ready   []string
	)
	for _, id := range g.order {
		pending[id] = len(g.upstream[id])
		if pending[id] == 0 {
			ready = append(ready, id)
		}
	}
	release := func(id string) {
		for _, d := range g.downstream[id] {
			pending[d]--
			if pending[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	upstreamOK := func(id string) bool {
		mu.Lock()
		defer mu.Unlock()
		for _, u := range g.upstream[id] {
			if results[u].Status != StatusSuccess {
				return false
			}
		}
		return true
	}

	eg := &errgroup.Group{}
	eg.SetLimit(limit)

	slog.Info("graph run starting", "graph", g.ID, "tasks", len(g.order), "parallelism", limit)
	finished := 0
	for finished < len(g.order) {
		for len(ready) > 0 {
			id := ready[0]
			ready = ready[1:]
			if !upstreamOK(id) {
				res := TaskResult{ID: id, Status: StatusUpstreamFailed}
				mu.Lock()
				results[id] = res
				mu.Unlock()
				metrics.RecordTask(g.ID, id, string(res.Status), 0)
				slog.Warn("task not run", "graph", g.ID, "task", id, "status", res.Status)
				finished++
				release(id)
				continue
			}
			task := g.tasks[id]
			eg.Go(func() error {
				res := runTask(ctx, g.ID, task)
				mu.Lock()
				results[task.ID] = res
				mu.Unlock()
				done <- task.ID
				return nil
			})
		}
		if finished == len(g.order) {
			break
		}
		id := <-done
		finished++
		release(id)
	}
	_ = eg.Wait()

	rep := Report{Graph: g.ID, Results: make([]TaskResult, 0, len(g.order))}
	for _, id := range g.order {
		rep.Results = append(rep.Results, results[id])
	}
	if err := rep.Err(); err != nil {
		slog.Error("graph run failed", "graph", g.ID, "error", err)
	} else {
		slog.Info("graph run complete", "graph", g.ID)
	}
	return rep, nil
}

func runTask(ctx context.Context, graph string, t Task) (res TaskResult) {
	res.ID = t.ID
	start := time.Now()
	log := slog.With("graph", graph, "task", t.ID)

	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("panic: %v", p)
		}
		res.Duration = time.Since(start)
		res.Status = StatusSuccess
		if res.Err != nil {
			res.Status = StatusFailed
			log.Error("task failed", "duration", res.Duration, "error", res.Err)
		} else {
			log.Info("task succeeded", "duration", res.Duration)
		}
		metrics.RecordTask(graph, t.ID, string(res.Status), res.Duration)
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	log.Info("task starting")
	res.Err = t.Run(ctx)
	return res
}
