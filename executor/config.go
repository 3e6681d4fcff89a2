// Package executor defines the query-executor contract the core consumes
// (core.Executor), a structured aggregate-query builder analyzers and the
// optimizer emit against it, and the executor-side context configuration.
package executor

import (
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/CAFxX/gcnotifier"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// TermContextConfig surfaces the executor's memory pool cap and
// parallelism through a config struct; the core
// otherwise treats the executor as opaque.
type TermContextConfig struct {
	BatchSize        int     `toml:"batch_size"`
	TargetPartitions int     `toml:"target_partitions"`
	MaxMemory        uint64  `toml:"max_memory"`
	MemoryFraction   float64 `toml:"memory_fraction"`
}

// DefaultContextConfig fills in the documented defaults:
// batch_size=8192, target_partitions=available parallelism, max_memory=2GiB,
// memory_fraction=0.9. target_partitions and max_memory additionally try to
// reflect the actual host: CPU count via runtime.NumCPU, and 90% of
// physical RAM via gopsutil when it can be read, falling back to the
// literal 2 GiB otherwise.
func DefaultContextConfig() TermContextConfig {
	cfg := TermContextConfig{
		BatchSize:        8192,
		TargetPartitions: runtime.NumCPU(),
		MaxMemory:        2 << 30,
		MemoryFraction:   0.9,
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 {
		cfg.MaxMemory = uint64(float64(vm.Total) * cfg.MemoryFraction)
	}
	return cfg
}

// LoadContextConfig reads a TermContextConfig from a TOML file, falling
// back to DefaultContextConfig for any field the file omits.
func LoadContextConfig(path string) (TermContextConfig, error) {
	cfg := DefaultContextConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return TermContextConfig{}, err
	}
	return cfg, nil
}

// MemoryPool tracks an approximate resident-size budget against MaxMemory
// and logs a warning when a GC cycle completes while usage is within 10%
// of the cap, a proxy for the spill policy the
// executor owns, surfaced here only as observability since the executor
// itself is out of core scope.
type MemoryPool struct {
	cfg     TermContextConfig
	notify  chan struct{}
	current func() uint64
}

// NewMemoryPool starts watching GC cycles via gcnotifier; usage is
// supplied by the caller (the concrete executor knows its own resident
// size) through the current callback.
func NewMemoryPool(cfg TermContextConfig, current func() uint64) *MemoryPool {
	n := gcnotifier.New()
	p := &MemoryPool{cfg: cfg, notify: n.AfterGC(), current: current}
	go p.watch(n)
	return p
}

func (p *MemoryPool) watch(n *gcnotifier.GCNotifier) {
	for range p.notify {
		if p.current == nil {
			continue
		}
		used := p.current()
		if p.cfg.MaxMemory > 0 && float64(used) > 0.9*float64(p.cfg.MaxMemory) {
			logrus.WithFields(logrus.Fields{
				"used_bytes": used,
				"max_memory": p.cfg.MaxMemory,
			}).Warn("executor memory pool nearing configured cap")
		}
	}
}

func (p *MemoryPool) Close() {
	// gcnotifier channels are closed by the runtime finalizer; nothing to
	// release explicitly, but kept as a method so callers can defer it
	// without caring about the implementation.
}
