package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/mapagent/internal/scenario"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

// mockLoader simulates layer loading for testing.
type mockLoader struct {
	delay     time.Duration
	failLayer map[string]bool
	callCount atomic.Int32
}

func (m *mockLoader) LoadLayer(ctx context.Context, layer scenario.LayerConfig, bbox types.BBox) (types.Layer, error) {
	m.callCount.Add(1)

	select {
	case <-ctx.Done():
		return types.Layer{}, ctx.Err()
	case <-time.After(m.delay):
	}

	if m.failLayer != nil && m.failLayer[layer.ID] {
		return types.Layer{}, errors.New("simulated failure")
	}

	return types.Layer{ID: layer.ID, Kind: types.KindPoints}, nil
}

func layerTasks(ids ...string) []Task {
	tasks := make([]Task, len(ids))
	for i, id := range ids {
		tasks[i] = Task{Layer: scenario.LayerConfig{ID: id}}
	}
	return tasks
}

func TestPool_BasicExecution(t *testing.T) {
	loader := &mockLoader{delay: 10 * time.Millisecond}
	pool := New(Config{Workers: 2, Loader: loader})

	tasks := layerTasks("water", "roads", "parks")
	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	for _, r := range results {
		if r.Err != nil {
			t.Errorf("Unexpected error for %s: %v", r.Task.Layer.ID, r.Err)
		}
		if r.Layer.ID == "" {
			t.Errorf("Expected layer for %s, got empty", r.Task.Layer.ID)
		}
	}

	if loader.callCount.Load() != int32(len(tasks)) {
		t.Errorf("Expected %d loader calls, got %d", len(tasks), loader.callCount.Load())
	}
}

func TestPool_Parallelism(t *testing.T) {
	loader := &mockLoader{delay: 50 * time.Millisecond}
	pool := New(Config{Workers: 4, Loader: loader})

	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = Task{Layer: scenario.LayerConfig{ID: string(rune('a' + i))}}
	}

	start := time.Now()
	results := pool.Run(context.Background(), tasks)
	elapsed := time.Since(start)

	maxExpected := 200 * time.Millisecond
	if elapsed > maxExpected {
		t.Errorf("Expected parallel execution in ~100ms, took %v", elapsed)
	}

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	t.Logf("Loaded %d layers with 4 workers in %v", len(tasks), elapsed)
}

func TestPool_ErrorHandling(t *testing.T) {
	loader := &mockLoader{
		delay:     10 * time.Millisecond,
		failLayer: map[string]bool{"roads": true},
	}
	pool := New(Config{Workers: 2, Loader: loader})

	tasks := layerTasks("water", "roads", "parks")
	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	var successCount, failCount int
	for _, r := range results {
		if r.Err != nil {
			failCount++
			if r.Task.Layer.ID != "roads" {
				t.Errorf("Unexpected failure for %s", r.Task.Layer.ID)
			}
		} else {
			successCount++
		}
	}

	if successCount != 2 {
		t.Errorf("Expected 2 successes, got %d", successCount)
	}
	if failCount != 1 {
		t.Errorf("Expected 1 failure, got %d", failCount)
	}
}

func TestPool_Cancellation(t *testing.T) {
	loader := &mockLoader{delay: 100 * time.Millisecond}
	pool := New(Config{Workers: 2, Loader: loader})

	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = Task{Layer: scenario.LayerConfig{ID: string(rune('a' + i))}}
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results := pool.Run(ctx, tasks)
	elapsed := time.Since(start)

	if elapsed > 200*time.Millisecond {
		t.Errorf("Expected early cancellation, took %v", elapsed)
	}

	var cancelledCount int
	for _, r := range results {
		if r.Err != nil && errors.Is(r.Err, context.Canceled) {
			cancelledCount++
		}
	}

	t.Logf("Completed with %d results (%d cancelled) in %v", len(results), cancelledCount, elapsed)
}

func TestPool_ProgressCallback(t *testing.T) {
	loader := &mockLoader{delay: 10 * time.Millisecond}

	var progressCalls atomic.Int32
	var lastCompleted, lastTotal int

	pool := New(Config{
		Workers: 2,
		Loader:  loader,
		OnProgress: func(completed, total, failed int) {
			progressCalls.Add(1)
			lastCompleted = completed
			lastTotal = total
		},
	})

	tasks := layerTasks("water", "roads", "parks")
	pool.Run(context.Background(), tasks)

	if progressCalls.Load() == 0 {
		t.Error("Expected progress callbacks, got none")
	}

	if lastCompleted != len(tasks) {
		t.Errorf("Expected lastCompleted=%d, got %d", len(tasks), lastCompleted)
	}
	if lastTotal != len(tasks) {
		t.Errorf("Expected lastTotal=%d, got %d", len(tasks), lastTotal)
	}
}

func TestPool_EmptyTasks(t *testing.T) {
	loader := &mockLoader{}
	pool := New(Config{Workers: 2, Loader: loader})

	results := pool.Run(context.Background(), nil)

	if len(results) != 0 {
		t.Errorf("Expected 0 results for empty tasks, got %d", len(results))
	}

	if loader.callCount.Load() != 0 {
		t.Errorf("Expected 0 loader calls for empty tasks, got %d", loader.callCount.Load())
	}
}

func TestPool_PassesBBoxToLoader(t *testing.T) {
	var gotBBox types.BBox
	loader := &mockLoader{}
	pool := New(Config{Workers: 1, Loader: captureBBoxLoader{loader, &gotBBox}})

	bbox := types.NewBBox(9.6, 52.3, 9.8, 52.4)
	pool.Run(context.Background(), []Task{{Layer: scenario.LayerConfig{ID: "water"}, BBox: bbox}})

	if gotBBox != bbox {
		t.Errorf("Expected loader to receive bbox %v, got %v", bbox, gotBBox)
	}
}

type captureBBoxLoader struct {
	inner *mockLoader
	bbox  *types.BBox
}

func (c captureBBoxLoader) LoadLayer(ctx context.Context, layer scenario.LayerConfig, bbox types.BBox) (types.Layer, error) {
	*c.bbox = bbox
	return c.inner.LoadLayer(ctx, layer, bbox)
}
