// Package profiling instruments a training run: CPU/heap/trace dumps via
// runtime/pprof, plus a per-operation timing table a Trainer can attach to
// its batch loop and report through rtlog at the end of a run.
package profiling

import (
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hirogava/graphrt/pkg/rtlog"
)

// Profiler coordinates CPU/memory/trace capture and the operation timing
// table for one training run. The zero value is not usable; build one with
// NewProfiler.
type Profiler struct {
	mu sync.RWMutex

	Config *Config

	cpuFile   *os.File
	cpuActive bool

	traceFile   *os.File
	traceActive bool

	OperationMetrics *OperationMetrics

	startTime time.Time
	endTime   time.Time

	Stats *Statistics
}

// Config selects which profiling facilities are active.
type Config struct {
	EnableCPUProfile bool
	CPUProfilePath   string

	EnableMemProfile bool
	MemProfilePath   string

	EnableTrace bool
	TracePath   string

	EnableOperationMetrics bool
}

// DefaultConfig enables only the operation timing table — the cheapest
// facility and the one Trainer reports through the structured logger.
func DefaultConfig() *Config {
	return &Config{
		EnableOperationMetrics: true,
	}
}

// NewProfiler builds a Profiler; a nil config falls back to DefaultConfig.
func NewProfiler(config *Config) *Profiler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Profiler{
		Config:           config,
		OperationMetrics: NewOperationMetrics(),
		Stats:            NewStatistics(),
	}
}

// Start begins whichever facilities Config enabled.
func (p *Profiler) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()

	if p.Config.EnableCPUProfile {
		if err := p.startCPUProfile(); err != nil {
			return err
		}
	}
	if p.Config.EnableTrace {
		if err := p.startTrace(); err != nil {
			return err
		}
	}
	return nil
}

// Stop ends active facilities, writes a memory profile if enabled, and
// finalizes Stats.TotalDuration.
func (p *Profiler) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.endTime = time.Now()

	if p.cpuActive {
		p.stopCPUProfile()
	}
	if p.traceActive {
		p.stopTrace()
	}
	if p.Config.EnableMemProfile {
		if err := p.writeMemProfile(); err != nil {
			return err
		}
	}

	p.Stats.TotalDuration = p.endTime.Sub(p.startTime)
	return nil
}

func (p *Profiler) startCPUProfile() error {
	f, err := os.Create(p.Config.CPUProfilePath)
	if err != nil {
		return err
	}
	p.cpuFile = f
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return err
	}
	p.cpuActive = true
	return nil
}

func (p *Profiler) stopCPUProfile() {
	pprof.StopCPUProfile()
	if p.cpuFile != nil {
		p.cpuFile.Close()
		p.cpuFile = nil
	}
	p.cpuActive = false
}

func (p *Profiler) writeMemProfile() error {
	f, err := os.Create(p.Config.MemProfilePath)
	if err != nil {
		return err
	}
	defer f.Close()

	runtime.GC()
	return pprof.WriteHeapProfile(f)
}

func (p *Profiler) startTrace() error {
	f, err := os.Create(p.Config.TracePath)
	if err != nil {
		return err
	}
	p.traceFile = f
	if err := trace.Start(f); err != nil {
		f.Close()
		return err
	}
	p.traceActive = true
	return nil
}

func (p *Profiler) stopTrace() {
	trace.Stop()
	if p.traceFile != nil {
		p.traceFile.Close()
		p.traceFile = nil
	}
	p.traceActive = false
}

// GetStats returns the current statistics snapshot, updating TotalDuration in
// place if the profiler is still running.
func (p *Profiler) GetStats() *Statistics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.startTime.IsZero() && p.endTime.IsZero() {
		p.Stats.TotalDuration = time.Since(p.startTime)
	}
	return p.Stats
}

// Report logs the operation timing table and memory statistics through
// rtlog at info level.
func (p *Profiler) Report() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ev := rtlog.Log.Info().Dur("total_duration", p.Stats.TotalDuration)
	if p.Config.EnableOperationMetrics {
		for _, m := range p.OperationMetrics.GetAllMetrics() {
			ev = ev.Dict(m.Name, zerolog.Dict().
				Int64("count", m.Count).
				Dur("total", m.TotalDuration).
				Dur("avg", m.AvgDuration()))
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	ev.Uint64("alloc_mb", bToMb(ms.Alloc)).
		Uint64("sys_mb", bToMb(ms.Sys)).
		Uint32("num_gc", ms.NumGC).
		Msg("profiling report")
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
