package render

import (
	"fmt"
	"time"

	"github.com/MeKo-Tech/noisegradient/internal/noise"
	"github.com/MeKo-Tech/noisegradient/internal/worker"
)

// Schedule advances clocks through frames ticks at fps and records one clock
// snapshot per frame. Snapshots are computed sequentially so that frames can
// afterwards be rendered in any order.
func Schedule(clocks *noise.Clocks, frames int, fps float64) ([]worker.Task, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("frame count must be positive, got %d", frames)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %g", fps)
	}

	interval := time.Duration(float64(time.Second) / fps)
	clocks.Start(0)

	tasks := make([]worker.Task, frames)
	for i := range tasks {
		ts := time.Duration(i) * interval
		clocks.Tick(ts)
		tasks[i] = worker.Task{Index: i, Timestamp: ts, Clocks: clocks.Snapshot()}
	}
	return tasks, nil
}
