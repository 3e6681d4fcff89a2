// Package dqguard ties the core validation model to a concrete executor,
// repository, and runner: the single entry point an application embeds
// behind one Config-plus-methods facade.
package dqguard

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/incremental"
	"github.com/dqguard/dqguard/internal/errs"
	"github.com/dqguard/dqguard/repository"
	"github.com/dqguard/dqguard/runner"
)

// errIncrementalNotConfigured is returned by the RunPartition/
// RunIncremental/MergePartitions methods when WithIncremental was never
// called.
var errIncrementalNotConfigured = errs.ErrConfiguration.New("engine: no incremental runner configured, call WithIncremental first")

// Config governs the Engine's default run behavior and incremental
// persistence policy. The zero value is invalid; use DefaultConfig.
type Config struct {
	// PersistReports, when true, writes every Run's ValidationReport to
	// the Engine's Repository under a ResultKey stamped with the current
	// time. False leaves the repository untouched (callers can still
	// query/persist explicitly through Engine.Repository).
	PersistReports bool
	// ReportTags is merged into every ResultKey Run stamps when
	// PersistReports is true.
	ReportTags map[string]string
	// Incremental configures the incremental runner IncrementalRunner
	// builds, when one is requested via WithIncremental.
	Incremental incremental.IncrementalConfig
}

// DefaultConfig persists reports and keeps the incremental runner's
// own defaults (fail-fast, 100-partition merge batches).
func DefaultConfig() Config {
	return Config{
		PersistReports: true,
		Incremental:    incremental.DefaultIncrementalConfig(),
	}
}

// Engine is the application-facing facade: one Executor, one Repository,
// a one-shot Runner, and an optional incremental Runner sharing the same
// set of registered analyzers. Safe for concurrent use to the extent its
// Executor and Repository are (both InMemoryRepository and memexec.Executor
// are).
type Engine struct {
	Executor   core.Executor
	Repository repository.Repository
	Runner     *runner.Runner

	// IncrementalRunner is nil unless WithIncremental configured one; its
	// own Analyzers/Store fields are set there, not here.
	IncrementalRunner *incremental.Runner

	Config Config
	Log    *logrus.Entry
}

// New builds an Engine over exec and repo with cfg's run policy. repo may
// be nil, which disables PersistReports regardless of cfg.
func New(exec core.Executor, repo repository.Repository, cfg Config) *Engine {
	return &Engine{
		Executor:   exec,
		Repository: repo,
		Runner:     runner.New(),
		Config:     cfg,
		Log:        logrus.WithField("component", "engine"),
	}
}

// WithIncremental attaches an incremental Runner sharing this Engine's
// Executor, so RunIncremental/RunPartition/MergePartitions become usable.
// Returns e for chaining, matching the builder style the rest of core
// uses.
func (e *Engine) WithIncremental(store incremental.StateStore, analyzers []core.Analyzer) *Engine {
	e.IncrementalRunner = incremental.New(store, analyzers, e.Config.Incremental)
	return e
}

func (e *Engine) log() *logrus.Entry {
	if e.Log != nil {
		return e.Log
	}
	return logrus.WithField("component", "engine")
}

// Run executes suite against the Engine's Executor and, when
// Config.PersistReports is set and a Repository is attached, persists the
// resulting report under a ResultKey stamped with the current time plus
// Config.ReportTags.
func (e *Engine) Run(ctx context.Context, suite *core.Suite) (*core.ValidationResult, error) {
	result, err := e.Runner.Run(ctx, e.Executor, suite)
	if err != nil {
		return nil, err
	}

	if e.Config.PersistReports && e.Repository != nil {
		key := repository.NewResultKey(time.Now().UnixMilli(), e.Config.ReportTags)
		if err := e.Repository.Put(ctx, key, result.Report); err != nil {
			e.log().WithError(err).WithField("suite", suite.Name()).Warn("failed to persist validation report")
		}
	}

	return result, nil
}

// RunPartition computes the incremental runner's registered analyzers
// fresh against table and persists the result under partition,
// returning the resulting metrics.
func (e *Engine) RunPartition(ctx context.Context, table, partition string) (*incremental.AnalyzerContext, error) {
	if e.IncrementalRunner == nil {
		return nil, errIncrementalNotConfigured
	}
	return e.IncrementalRunner.AnalyzePartition(ctx, e.Executor, table, partition)
}

// RunIncremental merges a fresh computation over table into partition's
// existing persisted state.
func (e *Engine) RunIncremental(ctx context.Context, table, partition string) (*incremental.AnalyzerContext, error) {
	if e.IncrementalRunner == nil {
		return nil, errIncrementalNotConfigured
	}
	return e.IncrementalRunner.AnalyzeIncremental(ctx, e.Executor, table, partition)
}

// MergePartitions folds every named partition's persisted state into one
// aggregate metric set without touching the Executor.
func (e *Engine) MergePartitions(ctx context.Context, partitions []string) (*incremental.AnalyzerContext, error) {
	if e.IncrementalRunner == nil {
		return nil, errIncrementalNotConfigured
	}
	return e.IncrementalRunner.AnalyzePartitions(ctx, partitions)
}
