package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Stats is a point-in-time view of an animation render.
type Stats struct {
	Total     int
	Completed int
	Failed    int
	// Playable is the length of animation, from frame 0, whose frames have
	// all rendered successfully.
	Playable time.Duration
	// Duration is the length of the whole animation.
	Duration time.Duration
	// FPS is the measured render rate; TargetFPS the animation's frame rate.
	FPS       float64
	TargetFPS float64
	Wall      time.Duration
}

// Realtime is the render rate relative to playback speed. Values >= 1 mean
// frames render faster than they play.
func (s Stats) Realtime() float64 {
	if s.TargetFPS <= 0 {
		return 0
	}
	return s.FPS / s.TargetFPS
}

// Progress tracks frame results and prints a progress line.
type Progress struct {
	output   io.Writer
	now      func() time.Time
	start    time.Time
	interval time.Duration
	total    int
	fps      float64
	done     map[int]time.Duration
	next     int
	playable time.Duration
	failed   int
	finished int
	mu       sync.Mutex
	enabled  bool
}

// NewProgress creates a tracker for total frames played back at fps.
func NewProgress(total int, fps float64, enabled bool) *Progress {
	p := &Progress{
		output:  os.Stderr,
		now:     time.Now,
		total:   total,
		fps:     fps,
		done:    make(map[int]time.Duration, total),
		enabled: enabled,
	}
	if fps > 0 {
		p.interval = time.Duration(float64(time.Second) / fps)
	}
	p.start = p.now()
	return p
}

// Record accounts for one finished frame.
func (p *Progress) Record(r Result) {
	p.mu.Lock()
	p.finished++
	if r.Err != nil {
		p.failed++
	} else {
		p.done[r.Task.Index] = r.Task.Timestamp
		for {
			ts, ok := p.done[p.next]
			if !ok {
				break
			}
			p.playable = ts + p.interval
			delete(p.done, p.next)
			p.next++
		}
	}
	p.mu.Unlock()

	if p.enabled {
		p.Print()
	}
}

// Callback returns a ProgressFunc suitable for use with Pool.Config.
func (p *Progress) Callback() ProgressFunc {
	return p.Record
}

// Stats returns the current counters.
func (p *Progress) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	wall := p.now().Sub(p.start)
	s := Stats{
		Total:     p.total,
		Completed: p.finished,
		Failed:    p.failed,
		Playable:  p.playable,
		Duration:  time.Duration(p.total) * p.interval,
		TargetFPS: p.fps,
		Wall:      wall,
	}
	if wall > 0 {
		s.FPS = float64(p.finished-p.failed) / wall.Seconds()
	}
	return s
}

// Print writes the progress line, overwriting the previous one.
func (p *Progress) Print() {
	s := p.Stats()

	const barWidth = 30
	filled := 0
	if s.Total > 0 {
		filled = min(barWidth, s.Completed*barWidth/s.Total)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\r[%s%s] %d/%d frames",
		strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled), s.Completed, s.Total)
	if s.Failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", s.Failed)
	}
	fmt.Fprintf(&b, " | %s/%s playable | %.1f fps (%.2fx realtime)",
		seconds(s.Playable), seconds(s.Duration), s.FPS, s.Realtime())
	if s.Completed == s.Total {
		fmt.Fprintf(&b, " | done in %s", s.Wall.Round(time.Second))
	} else if s.FPS > 0 {
		eta := time.Duration(float64(s.Total-s.Completed) / s.FPS * float64(time.Second))
		fmt.Fprintf(&b, " | ETA %s", eta.Round(time.Second))
	}
	b.WriteString("    ")

	fmt.Fprint(p.output, b.String())
}

// Done prints the final progress and a newline.
func (p *Progress) Done() {
	if p.enabled {
		p.Print()
		fmt.Fprintln(p.output)
	}
}

// Summary describes the finished render in one line.
func (p *Progress) Summary() string {
	s := p.Stats()
	return fmt.Sprintf("Rendered %d/%d frames (%d failed), %s of %s playable, in %s at %.1f fps (target %g fps)",
		s.Completed-s.Failed, s.Total, s.Failed,
		seconds(s.Playable), seconds(s.Duration), s.Wall.Round(time.Millisecond), s.FPS, s.TargetFPS)
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
