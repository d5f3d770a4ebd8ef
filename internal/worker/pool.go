// Package worker provides a parallel scenario-layer loading worker pool —
// grounded on the teacher's tile generation worker pool (same Task/Result/
// Pool shape), retargeted from rendering tiles to loading scenario layers
// from their configured sources.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/MeKo-Tech/mapagent/internal/scenario"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

// LayerLoader loads a single scenario layer's features from its configured
// source. This matches the signature datasource.ScenarioLoader exposes.
type LayerLoader interface {
	LoadLayer(ctx context.Context, layer scenario.LayerConfig, bbox types.BBox) (types.Layer, error)
}

// Task represents a single layer load task.
type Task struct {
	Layer scenario.LayerConfig
	BBox  types.BBox
}

// Result represents the outcome of a layer load task.
type Result struct {
	Task    Task
	Layer   types.Layer
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called after each task completes.
type ProgressFunc func(completed, total, failed int)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Loader     LayerLoader
	OnProgress ProgressFunc
}

// Pool manages parallel scenario layer loading.
type Pool struct {
	workers    int
	loader     LayerLoader
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		loader:     cfg.Loader,
		onProgress: cfg.OnProgress,
	}
}

// Run loads every task's layer and returns results. Tasks are processed in
// parallel by the configured number of workers. The function blocks until
// all tasks complete or the context is cancelled.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, len(tasks))

	var (
		completed int
		failed    int
		mu        sync.Mutex
	)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	go func() {
		for _, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				break
			}
		}
		close(taskCh)
	}()

	results := make([]Result, 0, len(tasks))
	done := make(chan struct{})

	go func() {
		for result := range resultCh {
			results = append(results, result)

			mu.Lock()
			completed++
			if result.Err != nil {
				failed++
			}
			c, f := completed, failed
			mu.Unlock()

			if p.onProgress != nil {
				p.onProgress(c, len(tasks), f)
			}
		}
		close(done)
	}()

	wg.Wait()
	close(resultCh)
	<-done

	return results
}

func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		select {
		case <-ctx.Done():
			results <- Result{Task: task, Err: ctx.Err()}
			continue
		default:
		}

		start := time.Now()
		layer, err := p.loader.LoadLayer(ctx, task.Layer, task.BBox)
		elapsed := time.Since(start)

		results <- Result{
			Task:    task,
			Layer:   layer,
			Err:     err,
			Elapsed: elapsed,
		}
	}
}
