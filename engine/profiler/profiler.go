package profiler

import (
	"fmt"
	"log"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Stage is one timed phase of a frame.
type Stage int

const (
	StageAcquire Stage = iota
	StageCull
	StageRecord
	StageEnqueue
	StageSubmit
	StagePresent
	StageDownload
	stageCount
)

func (s Stage) String() string {
	switch s {
	case StageAcquire:
		return "acquire"
	case StageCull:
		return "cull"
	case StageRecord:
		return "record"
	case StageEnqueue:
		return "enqueue"
	case StageSubmit:
		return "submit"
	case StagePresent:
		return "present"
	case StageDownload:
		return "download"
	default:
		return "unknown"
	}
}

// Profiler tracks frame rate, memory statistics and per-stage frame timings for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	mu             *sync.Mutex
	now            func() time.Time
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	stageTotal [stageCount]time.Duration
	stageCalls [stageCount]int
	lastStages map[Stage]time.Duration
}

// NewProfiler creates a new Profiler. Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		now:            time.Now,
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
		lastStages:     make(map[Stage]time.Duration),
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Record adds one measurement of a stage to the current interval.
//
// Parameters:
//   - stage: the frame stage
//   - d: how long it took
func (p *Profiler) Record(stage Stage, d time.Duration) {
	if stage < 0 || stage >= stageCount {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stageTotal[stage] += d
	p.stageCalls[stage]++
}

// Time starts timing a stage and returns the function that stops it.
//
// Parameters:
//   - stage: the frame stage
//
// Returns:
//   - func(): records the elapsed time when called
func (p *Profiler) Time(stage Stage) func() {
	start := p.now()
	return func() {
		p.Record(stage, p.now().Sub(start))
	}
}

// StageAverages returns the mean duration of each stage over the last completed interval.
// Stages with no measurements are omitted.
//
// Returns:
//   - map[Stage]time.Duration: mean duration per stage
func (p *Profiler) StageAverages() map[Stage]time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[Stage]time.Duration, len(p.lastStages))
	for k, v := range p.lastStages {
		out[k] = v
	}
	return out
}

// rollStages moves the current interval's means into lastStages and formats them in milliseconds.
func (p *Profiler) rollStages() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.lastStages)
	var sb strings.Builder
	for s := range stageCount {
		if p.stageCalls[s] == 0 {
			continue
		}
		avg := p.stageTotal[s] / time.Duration(p.stageCalls[s])
		p.lastStages[s] = avg
		fmt.Fprintf(&sb, " %s=%.3f", s, float64(avg)/float64(time.Millisecond))
	}
	p.stageTotal = [stageCount]time.Duration{}
	p.stageCalls = [stageCount]int{}
	return sb.String()
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed >= p.updateInterval {
		fps := float64(p.frameCount) / elapsed.Seconds()

		runtime.ReadMemStats(&p.memStats)
		// Alloc: Bytes of allocated heap objects (live memory)
		// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
		// Sys: Total bytes of memory obtained from the OS (actual process footprint)
		allocMB := float64(p.memStats.Alloc) / 1024 / 1024
		sysMB := float64(p.memStats.Sys) / 1024 / 1024

		// Calculate allocation rate (MB/sec)
		allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
		allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

		// Calculate GC pause stats (last pause and max recent pause)
		gcCount := p.memStats.NumGC
		var lastPauseUs, maxPauseUs uint64
		if gcCount > 0 {
			// PauseNs is a circular buffer of last 256 GC pauses
			lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

			// Find max pause since last tick
			startIdx := p.lastGCCount
			if gcCount-startIdx > 256 {
				startIdx = gcCount - 256
			}
			for i := startIdx; i < gcCount; i++ {
				pause := p.memStats.PauseNs[i%256] / 1000
				if pause > maxPauseUs {
					maxPauseUs = pause
				}
			}
		}

		log.Printf("[Profiler] FPS: %.2f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
			fps, allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)
		if stages := p.rollStages(); stages != "" {
			log.Printf("[Profiler] Stages (ms):%s", stages)
		}

		p.frameCount = 0
		p.lastTime = currentTime
		p.lastGCCount = gcCount
		p.lastTotalAlloc = p.memStats.TotalAlloc
		return true
	}

	return false
}
