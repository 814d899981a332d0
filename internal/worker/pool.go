// Package worker provides a parallel frame rendering worker pool.
package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MeKo-Tech/noisegradient/internal/noise"
)

// Generator renders and stores a single frame, returning where it went.
type Generator interface {
	RenderFrame(ctx context.Context, task Task) (location string, err error)
}

// Task is one frame of an animation. Clocks is the snapshot computed for the
// frame's timestamp and is not modified by the pool.
type Task struct {
	Clocks    noise.Snapshot
	Index     int
	Timestamp time.Duration
}

// Result represents the outcome of a frame task.
type Result struct {
	Err      error
	Location string
	Task     Task
	Elapsed  time.Duration
}

// ProgressFunc receives each result as it completes. Calls are sequential.
type ProgressFunc func(Result)

// Config configures the worker pool.
type Config struct {
	Generator  Generator
	OnProgress ProgressFunc
	Workers    int
}

// Pool renders frames in parallel.
type Pool struct {
	generator  Generator
	onProgress ProgressFunc
	workers    int
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		generator:  cfg.Generator,
		onProgress: cfg.OnProgress,
	}
}

// Run executes all tasks and returns results in completion order.
// Tasks are processed in parallel by the configured number of workers.
// The function blocks until all tasks complete or the context is cancelled;
// tasks never handed to a worker are not reported.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	go func() {
		defer close(taskCh)
		for _, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := make([]Result, 0, len(tasks))
	done := make(chan struct{})

	go func() {
		for result := range resultCh {
			results = append(results, result)
			if p.onProgress != nil {
				p.onProgress(result)
			}
		}
		close(done)
	}()

	wg.Wait()
	close(resultCh)
	<-done

	return results
}

// worker processes tasks from the task channel and sends results to the result channel.
func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result{Task: task, Err: err}
			continue
		}

		start := time.Now()
		loc, err := p.generator.RenderFrame(ctx, task)
		results <- Result{
			Task:     task,
			Location: loc,
			Err:      err,
			Elapsed:  time.Since(start),
		}
	}
}

// SortByIndex orders results by frame index.
func SortByIndex(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Task.Index < results[j].Task.Index
	})
}

// FirstError returns the error of the lowest-indexed failed frame, or nil.
func FirstError(results []Result) error {
	var (
		err error
		idx int
	)
	for _, r := range results {
		if r.Err != nil && (err == nil || r.Task.Index < idx) {
			err, idx = r.Err, r.Task.Index
		}
	}
	return err
}
