package service

import (
	"sync"
	"time"

	"learner-portal/internal/config"
)

// WatchGate decides when the active lesson has been watched far enough to be
// marked complete. Progress comes from OnWatchProgress; the optional fallback
// timer stands in for players that do not report progress.
type WatchGate struct {
	threshold     float64
	fallbackAfter time.Duration

	mu         sync.Mutex
	lessonID   int64
	generation uint64
	percent    float64
	timer      *time.Timer
	stopped    bool
}

func NewWatchGate(watchCfg *config.Watch) *WatchGate {
	threshold := watchCfg.ThresholdPercent
	if threshold <= 0 || threshold > 100 {
		threshold = 100
	}
	return &WatchGate{
		threshold:     threshold,
		fallbackAfter: watchCfg.FallbackAfter,
	}
}

// Arm resets the gate for a newly active lesson and cancels any timer armed
// for the previous one.
func (g *WatchGate) Arm(lessonID int64, alreadyWatched bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopTimerLocked()
	g.generation++
	g.lessonID = lessonID
	g.percent = 0

	if alreadyWatched {
		g.percent = 100
		return
	}
	if g.stopped || g.fallbackAfter <= 0 {
		return
	}

	gen := g.generation
	g.timer = time.AfterFunc(g.fallbackAfter, func() {
		g.fire(gen)
	})
}

func (g *WatchGate) fire(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// stale timer from a lesson that is no longer active
	if g.stopped || gen != g.generation {
		return
	}
	g.percent = 100
	g.timer = nil
}

// OnWatchProgress records playback progress for lessonID. Reports for any
// other lesson are ignored. Progress never moves backwards.
func (g *WatchGate) OnWatchProgress(lessonID int64, percent float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped || lessonID != g.lessonID {
		return g.percent >= g.threshold
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent > g.percent {
		g.percent = percent
	}
	return g.percent >= g.threshold
}

func (g *WatchGate) Satisfied() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.percent >= g.threshold
}

func (g *WatchGate) Percent() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.percent
}

func (g *WatchGate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopped = true
	g.stopTimerLocked()
}

func (g *WatchGate) stopTimerLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}
