package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/noisegradient/internal/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGenerator simulates frame rendering for testing
type mockGenerator struct {
	failFrames map[int]bool
	delay      time.Duration
	callCount  atomic.Int32
}

func (m *mockGenerator) RenderFrame(ctx context.Context, task Task) (string, error) {
	m.callCount.Add(1)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(m.delay):
	}

	if m.failFrames[task.Index] {
		return "", errors.New("simulated failure")
	}
	return fmt.Sprintf("/tmp/frame_%05d.png", task.Index), nil
}

func frameTasks(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{
			Index:     i,
			Timestamp: time.Duration(i) * 40 * time.Millisecond,
			Clocks:    noise.Snapshot{noise.ChannelPrimary: 1 + float64(i)*0.04},
		}
	}
	return tasks
}

func TestPool_BasicExecution(t *testing.T) {
	gen := &mockGenerator{delay: 10 * time.Millisecond}
	pool := New(Config{Workers: 2, Generator: gen})

	tasks := frameTasks(3)
	results := pool.Run(context.Background(), tasks)

	require.Len(t, results, len(tasks))
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, fmt.Sprintf("/tmp/frame_%05d.png", r.Task.Index), r.Location)
	}
	assert.Equal(t, int32(len(tasks)), gen.callCount.Load())
}

func TestPool_Parallelism(t *testing.T) {
	gen := &mockGenerator{delay: 50 * time.Millisecond}
	pool := New(Config{Workers: 4, Generator: gen})

	start := time.Now()
	results := pool.Run(context.Background(), frameTasks(8))
	elapsed := time.Since(start)

	// 8 tasks on 4 workers at 50ms each is two rounds.
	assert.Less(t, elapsed, 300*time.Millisecond)
	assert.Len(t, results, 8)
}

func TestPool_ErrorHandling(t *testing.T) {
	gen := &mockGenerator{
		delay:      5 * time.Millisecond,
		failFrames: map[int]bool{1: true, 3: true},
	}
	pool := New(Config{Workers: 2, Generator: gen})

	results := pool.Run(context.Background(), frameTasks(5))
	require.Len(t, results, 5)

	var failed []int
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Task.Index)
		}
	}
	assert.ElementsMatch(t, []int{1, 3}, failed)

	err := FirstError(results)
	require.Error(t, err)
	assert.Equal(t, "simulated failure", err.Error())
}

func TestPool_Cancellation(t *testing.T) {
	gen := &mockGenerator{delay: 100 * time.Millisecond}
	pool := New(Config{Workers: 2, Generator: gen})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results := pool.Run(ctx, frameTasks(10))
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.LessOrEqual(t, len(results), 10)

	var cancelled int
	for _, r := range results {
		if errors.Is(r.Err, context.Canceled) {
			cancelled++
		}
	}
	assert.Positive(t, cancelled)
}

func TestPool_ProgressCallback(t *testing.T) {
	gen := &mockGenerator{delay: time.Millisecond}

	var calls atomic.Int32
	seen := map[int]bool{}
	pool := New(Config{
		Workers:   2,
		Generator: gen,
		OnProgress: func(r Result) {
			calls.Add(1)
			seen[r.Task.Index] = true
		},
	})

	pool.Run(context.Background(), frameTasks(3))

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true}, seen)
}

func TestPool_EmptyTasks(t *testing.T) {
	gen := &mockGenerator{}
	pool := New(Config{Workers: 2, Generator: gen})

	assert.Empty(t, pool.Run(context.Background(), nil))
	assert.Zero(t, gen.callCount.Load())
}

func TestPool_PassesClockSnapshot(t *testing.T) {
	var seen [4]float64
	gen := generatorFunc(func(_ context.Context, task Task) (string, error) {
		seen[task.Index] = task.Clocks[noise.ChannelPrimary]
		return "", nil
	})
	pool := New(Config{Workers: 1, Generator: gen})

	pool.Run(context.Background(), frameTasks(4))

	for i, v := range seen {
		assert.InDelta(t, 1+float64(i)*0.04, v, 1e-12)
	}
}

func TestSortByIndex(t *testing.T) {
	results := []Result{{Task: Task{Index: 2}}, {Task: Task{Index: 0}}, {Task: Task{Index: 1}}}
	SortByIndex(results)
	for i, r := range results {
		assert.Equal(t, i, r.Task.Index)
	}
}

func TestFirstError_LowestIndex(t *testing.T) {
	results := []Result{
		{Task: Task{Index: 5}, Err: errors.New("five")},
		{Task: Task{Index: 2}, Err: errors.New("two")},
		{Task: Task{Index: 0}},
	}
	assert.EqualError(t, FirstError(results), "two")
	assert.NoError(t, FirstError(results[2:]))
}

type generatorFunc func(ctx context.Context, task Task) (string, error)

func (f generatorFunc) RenderFrame(ctx context.Context, task Task) (string, error) {
	return f(ctx, task)
}
