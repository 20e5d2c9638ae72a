// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package dq is the engine facade: it wires the planner, the sketch
// engine, the metadata repository and the check evaluator into one
// Run call per (dataset, table). It is deliberately thin — the fluent
// DSL/builder a caller might put in front of this is out of scope, per
// SPEC_FULL.md §1.
package dq

import (
	"context"
	"fmt"

	"github.com/dqcore/dqengine/check"
	"github.com/dqcore/dqengine/config"
	"github.com/dqcore/dqengine/metric"
	"github.com/dqcore/dqengine/planner"
	"github.com/dqcore/dqengine/property"
	"github.com/dqcore/dqengine/repository"
	"github.com/dqcore/dqengine/sketch"
	"github.com/dqcore/dqengine/sqlexec"
)

// Engine runs verification suites against tables reachable through a
// single sqlexec.Executor, persisting state and results to a
// repository.Repository.
type Engine struct {
	Exec sqlexec.Executor
	Repo repository.Repository
	Cfg  config.Config
}

// New builds an Engine from an executor, a repository and a config.
func New(exec sqlexec.Executor, repo repository.Repository, cfg config.Config) *Engine {
	return &Engine{Exec: exec, Repo: repo, Cfg: cfg}
}

// Suite is a named collection of checks to run together against one
// table, plus the properties those checks require measured.
type Suite struct {
	DatasetID  string
	Table      string
	Properties []property.Property
	Checks     []check.Check
}

// Result is the full outcome of running a Suite: the run id the
// repository minted, every measured metric, every check's result, and
// the overall verification status.
type Result struct {
	RunID   string
	Metrics map[property.Key]metric.Any
	Checks  []check.CheckResult
	Status  check.Status
}

// Run measures s.Properties against s.Table, folding each property's
// new state into every state previously registered for s.DatasetID
// (e.Repo.RegisterState/LoadStates/state.Merge — so a run over a fresh
// partition is reported against the dataset's running history, not in
// isolation), persists the resulting metrics, evaluates s.Checks
// against them, persists the check results, and returns the combined
// outcome. A planning failure (schema introspection failing entirely,
// for instance) aborts the run; a single property failing to measure
// does not — it surfaces as a failed metric and propagates into any
// check that depends on it via check.Evaluate's "Missing Analysis"/
// "Can't execute the assertion" paths.
func (e *Engine) Run(ctx context.Context, s Suite) (Result, error) {
	runID, err := e.Repo.SetDataset(ctx, s.DatasetID)
	if err != nil {
		return Result{}, fmt.Errorf("dq: opening run: %w", err)
	}

	eng := sketch.NewEngine(e.Cfg.SketchSize, e.Cfg.HLLPrecision)
	metrics, err := planner.Plan(ctx, s.DatasetID, s.Table, s.Properties, e.Repo, e.Exec, planner.Options{
		NoSharing: e.Cfg.NoSharing,
		Sketches:  eng,
	})
	if err != nil {
		return Result{}, fmt.Errorf("dq: planning: %w", err)
	}

	records := make([]repository.MetricRecord, 0, len(metrics))
	for key, m := range metrics {
		records = append(records, repository.MetricRecord{
			RunID:    runID,
			Property: key.String(),
			Instance: key.Instance,
			Entity:   key.Entity.String(),
			Metric:   m,
		})
	}
	if err := e.Repo.StoreMetrics(ctx, runID, records); err != nil {
		return Result{}, fmt.Errorf("dq: storing metrics: %w", err)
	}

	results := make([]check.CheckResult, 0, len(s.Checks))
	for _, c := range s.Checks {
		if e.Cfg.DefaultHint != "" {
			constraints := make([]check.Constraint, len(c.Constraints))
			for i, con := range c.Constraints {
				if ab, ok := con.(check.AnalysisBased); ok && ab.Hint == "" {
					ab.Hint = e.Cfg.DefaultHint
					con = ab
				}
				constraints[i] = con
			}
			c.Constraints = constraints
		}
		results = append(results, check.Evaluate(c, metrics))
	}
	if err := e.Repo.StoreChecks(ctx, runID, results); err != nil {
		return Result{}, fmt.Errorf("dq: storing checks: %w", err)
	}

	return Result{
		RunID:   runID,
		Metrics: metrics,
		Checks:  results,
		Status:  check.VerificationStatus(results),
	}, nil
}
