package incremental

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/dqguard/dqguard/core"
)

// DefaultMaxMergeBatchSize bounds how many partitions AnalyzePartitions
// loads from the store per round trip.
const DefaultMaxMergeBatchSize = 100

// IncrementalConfig governs the incremental runner's error policy and
// persistence behavior.
type IncrementalConfig struct {
	FailFast          bool
	SaveEmptyStates   bool
	MaxMergeBatchSize int
}

// DefaultIncrementalConfig returns the documented defaults.
func DefaultIncrementalConfig() IncrementalConfig {
	return IncrementalConfig{FailFast: true, SaveEmptyStates: false, MaxMergeBatchSize: DefaultMaxMergeBatchSize}
}

func (c IncrementalConfig) batchSize() int {
	if c.MaxMergeBatchSize > 0 {
		return c.MaxMergeBatchSize
	}
	return DefaultMaxMergeBatchSize
}

// AnalyzerContext is the metrics-plus-errors value every incremental
// operation returns: the current metric per registered analyzer
// (keyed by MetricKey), and, when FailFast is false, the per-analyzer
// failures that were swallowed rather than aborting the call.
type AnalyzerContext struct {
	Metrics map[string]float64
	Errors  []error
}

func newAnalyzerContext() *AnalyzerContext {
	return &AnalyzerContext{Metrics: map[string]float64{}}
}

// Runner computes a fixed set of registered analyzers over partitioned
// data, persisting and merging their states through a StateStore.
type Runner struct {
	Store     StateStore
	Analyzers []core.Analyzer
	Config    IncrementalConfig
	Log       *logrus.Entry
}

func New(store StateStore, analyzers []core.Analyzer, cfg IncrementalConfig) *Runner {
	return &Runner{
		Store:     store,
		Analyzers: analyzers,
		Config:    cfg,
		Log:       logrus.WithField("component", "incremental"),
	}
}

func (r *Runner) log() *logrus.Entry {
	if r.Log != nil {
		return r.Log
	}
	return logrus.WithField("component", "incremental")
}

// AnalyzePartition computes every registered analyzer fresh against
// exec's current table, persists each analyzer's state under partition,
// and returns the metrics computed from that fresh state.
func (r *Runner) AnalyzePartition(ctx context.Context, exec core.Executor, table, partition string) (*AnalyzerContext, error) {
	result := newAnalyzerContext()
	toSave := map[string][]byte{}

	for _, a := range r.Analyzers {
		state, err := a.ComputeState(ctx, exec, table)
		if err != nil {
			if r.Config.FailFast {
				return nil, err
			}
			result.Errors = append(result.Errors, err)
			continue
		}

		if err := r.stageState(toSave, a, state); err != nil {
			if r.Config.FailFast {
				return nil, err
			}
			result.Errors = append(result.Errors, err)
			continue
		}

		metric, err := a.ComputeMetric(state)
		if err != nil {
			if r.Config.FailFast {
				return nil, err
			}
			result.Errors = append(result.Errors, err)
			continue
		}
		if !metric.Skip {
			result.Metrics[a.MetricKey()] = metric.Primary
		}
	}

	if err := r.Store.SaveState(ctx, partition, toSave); err != nil {
		return nil, err
	}
	r.log().WithFields(logrus.Fields{"partition": partition, "analyzers": len(r.Analyzers)}).Debug("partition analyzed")
	return result, nil
}

// stageState marshals state into toSave under a's MetricKey, unless
// state is empty and the config says not to bother persisting empties.
func (r *Runner) stageState(toSave map[string][]byte, a core.Analyzer, state core.State) error {
	if state.IsEmpty() && !r.Config.SaveEmptyStates {
		return nil
	}
	data, err := state.Marshal()
	if err != nil {
		return err
	}
	toSave[a.MetricKey()] = data
	return nil
}

// AnalyzeIncremental loads partition's existing state, computes a fresh
// state from exec, merges the two via each analyzer's MergeStates, and
// persists the merged result back under the same partition: "append new
// daily batch to today's running state".
func (r *Runner) AnalyzeIncremental(ctx context.Context, exec core.Executor, table, partition string) (*AnalyzerContext, error) {
	existing, err := r.Store.LoadState(ctx, partition)
	if err != nil {
		return nil, err
	}

	result := newAnalyzerContext()
	toSave := map[string][]byte{}

	for _, a := range r.Analyzers {
		fresh, err := a.ComputeState(ctx, exec, table)
		if err != nil {
			if r.Config.FailFast {
				return nil, err
			}
			result.Errors = append(result.Errors, err)
			continue
		}

		merged := fresh
		if raw, ok := existing[a.MetricKey()]; ok {
			prior, err := a.UnmarshalState(raw)
			if err != nil {
				if r.Config.FailFast {
					return nil, err
				}
				result.Errors = append(result.Errors, err)
				continue
			}
			merged, err = a.MergeStates([]core.State{prior, fresh})
			if err != nil {
				if r.Config.FailFast {
					return nil, err
				}
				result.Errors = append(result.Errors, err)
				continue
			}
		}

		if err := r.stageState(toSave, a, merged); err != nil {
			if r.Config.FailFast {
				return nil, err
			}
			result.Errors = append(result.Errors, err)
			continue
		}

		metric, err := a.ComputeMetric(merged)
		if err != nil {
			if r.Config.FailFast {
				return nil, err
			}
			result.Errors = append(result.Errors, err)
			continue
		}
		if !metric.Skip {
			result.Metrics[a.MetricKey()] = metric.Primary
		}
	}

	if err := r.Store.SaveState(ctx, partition, toSave); err != nil {
		return nil, err
	}
	r.log().WithField("partition", partition).Debug("partition merged incrementally")
	return result, nil
}

// AnalyzePartitions loads every named partition's persisted state in
// batches of at most Config.MaxMergeBatchSize, groups the loaded bytes by
// analyzer, merges each analyzer's group, and returns the resulting
// aggregate metrics. It never touches an executor, it
// only reads what AnalyzePartition/AnalyzeIncremental already persisted.
func (r *Runner) AnalyzePartitions(ctx context.Context, partitions []string) (*AnalyzerContext, error) {
	result := newAnalyzerContext()
	byAnalyzer := make(map[string][]core.State, len(r.Analyzers))
	analyzerByKey := make(map[string]core.Analyzer, len(r.Analyzers))
	for _, a := range r.Analyzers {
		analyzerByKey[a.MetricKey()] = a
	}

	batchSize := r.Config.batchSize()
	for start := 0; start < len(partitions); start += batchSize {
		end := start + batchSize
		if end > len(partitions) {
			end = len(partitions)
		}
		batch := partitions[start:end]

		loaded, err := r.Store.LoadStatesBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		for _, p := range batch {
			for key, raw := range loaded[p] {
				a, ok := analyzerByKey[key]
				if !ok {
					continue
				}
				st, err := a.UnmarshalState(raw)
				if err != nil {
					if r.Config.FailFast {
						return nil, err
					}
					result.Errors = append(result.Errors, err)
					continue
				}
				byAnalyzer[key] = append(byAnalyzer[key], st)
			}
		}
	}

	for key, states := range byAnalyzer {
		a := analyzerByKey[key]
		merged, err := a.MergeStates(states)
		if err != nil {
			if r.Config.FailFast {
				return nil, err
			}
			result.Errors = append(result.Errors, err)
			continue
		}
		metric, err := a.ComputeMetric(merged)
		if err != nil {
			if r.Config.FailFast {
				return nil, err
			}
			result.Errors = append(result.Errors, err)
			continue
		}
		if !metric.Skip {
			result.Metrics[key] = metric.Primary
		}
	}

	r.log().WithFields(logrus.Fields{"partitions": len(partitions), "batch_size": batchSize}).Debug("partitions merged")
	return result, nil
}
