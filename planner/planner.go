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

// Package planner compiles a set of properties into the minimal number
// of SQL passes needed to measure all of them, sharing a scan or a
// GROUP BY across every operator that can use it. Grounded on
// original_source/.../sql_engine.py's SQLEngine.compute_metrics.
package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/dchest/siphash"
	"github.com/dqcore/dqengine/dqerr"
	"github.com/dqcore/dqengine/metric"
	"github.com/dqcore/dqengine/operator"
	"github.com/dqcore/dqengine/property"
	"github.com/dqcore/dqengine/repository"
	"github.com/dqcore/dqengine/sketch"
	"github.com/dqcore/dqengine/sqlexec"
	"github.com/dqcore/dqengine/state"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Options controls how Plan shares work across properties.
type Options struct {
	// NoSharing disables aggregation sharing: every property runs its
	// own scan, as a fallback when the backend's planner cannot be
	// trusted to execute a wide multi-aggregation SELECT efficiently.
	NoSharing bool
	// Sketches builds and merges the KLL/HLL sketches Quantile and
	// ApproxDistinctness need. Required if props contains either.
	Sketches *sketch.Engine
}

// Errorf is a package-level logging hook, following the teacher's
// zero-import-cost diagnostic pattern: nil by default, callers assign a
// logger (e.g. log.Printf) to observe planning decisions.
var Errorf func(format string, args ...any)

func logf(format string, args ...any) {
	if Errorf != nil {
		Errorf(format, args...)
	}
}

type scanEntry struct {
	prop property.Property
	op   operator.ScanShareable
}

type groupEntry struct {
	prop property.Property
	op   operator.GroupingShareable
}

type sketchEntry struct {
	prop property.Property
	op   operator.SketchOperator
}

// planCtx bundles the collaborators every derivation step needs so the
// scan/group/sketch helpers don't each grow a long, repeated parameter
// list. It is built once per Plan call.
type planCtx struct {
	table     string
	datasetID string
	repo      repository.Repository
	exec      sqlexec.Executor
	sketches  *sketch.Engine
}

// Plan measures every property in props against table, registering each
// property's raw state with repo and merging it against that property's
// previously registered states for datasetID before deriving a metric —
// this is what lets a later run over a fresh partition fold into the
// same dataset's running totals instead of reporting that partition in
// isolation (spec.md's incremental evaluation path). repo may be nil,
// in which case every property is measured from this table's data alone,
// exactly as if this were its first and only partition.
//
// A failure measuring one property never aborts the others: it is
// captured as a failure metric for that property alone. Only an
// operator of unknown shape (dqerr.UnknownOperatorType) aborts the plan.
func Plan(ctx context.Context, datasetID, table string, props []property.Property, repo repository.Repository, exec sqlexec.Executor, opts Options) (map[property.Key]metric.Any, error) {
	results := make(map[property.Key]metric.Any, len(props))

	schema, err := exec.Schema(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("planner: introspecting schema of %q: %w", table, err)
	}

	pc := &planCtx{table: table, datasetID: datasetID, repo: repo, exec: exec, sketches: opts.Sketches}

	var scans []scanEntry
	groups := make(map[string][]groupEntry)
	var sketches []sketchEntry

	for _, p := range props {
		key := p.Key()
		if _, done := results[key]; done {
			continue // already measured by an earlier duplicate in props
		}
		if msg := checkPreconditions(p, schema); msg != "" {
			results[key] = metric.FromProperty(p, &dqerr.PreconditionNotMet{Message: msg})
			continue
		}
		if _, ok := p.(property.SchemaProperty); ok {
			recordSchemaResult(ctx, pc, p, schema, results)
			continue
		}

		op, err := operator.Compile(p)
		if err != nil {
			results[key] = metric.FromProperty(p, err)
			continue
		}
		switch o := op.(type) {
		case operator.ScanShareable:
			scans = append(scans, scanEntry{p, o})
		case operator.GroupingShareable:
			gkey := strings.Join(o.GroupingColumns(), "\x1f")
			groups[gkey] = append(groups[gkey], groupEntry{p, o})
		case operator.SketchOperator:
			sketches = append(sketches, sketchEntry{p, o})
		default:
			return nil, &dqerr.UnknownOperatorType{TypeName: fmt.Sprintf("%T", op)}
		}
	}

	if err := runScans(ctx, pc, scans, opts.NoSharing, results); err != nil {
		return nil, err
	}
	if err := runGroups(ctx, pc, groups, results); err != nil {
		return nil, err
	}
	if err := runSketches(ctx, pc, sketches, results); err != nil {
		return nil, err
	}

	return results, nil
}

func checkPreconditions(p property.Property, schema property.Schema) string {
	for _, pc := range p.Preconditions() {
		if msg := pc.Check(schema); msg != "" {
			return msg
		}
	}
	return ""
}

// deriveMetric registers st as datasetID's latest observation of p,
// merges it against every previously registered state for p under
// datasetID (folding partition history into one combined state), and
// derives p's metric from the result. With repo == nil it derives the
// metric from st alone, skipping persistence entirely.
func deriveMetric(ctx context.Context, pc *planCtx, p property.Property, st state.State) (metric.Any, error) {
	merged, err := mergeWithHistory(ctx, pc, p, st)
	if err != nil {
		return nil, err
	}
	return toMetric(p, merged, pc.sketches)
}

func mergeWithHistory(ctx context.Context, pc *planCtx, p property.Property, st state.State) (state.State, error) {
	if pc.repo == nil {
		return st, nil
	}
	if err := pc.repo.RegisterState(ctx, pc.datasetID, st); err != nil {
		return nil, fmt.Errorf("planner: registering state for %s: %w", p, err)
	}
	prior, err := pc.repo.LoadStates(ctx, pc.datasetID, p.Key().Identifier())
	if err != nil {
		return nil, fmt.Errorf("planner: loading prior states for %s: %w", p, err)
	}
	if len(prior) == 0 {
		// A repository that doesn't track history (or a dataset seen
		// for the first time) leaves st as the only observation.
		return st, nil
	}
	var merger state.SketchMerger
	if pc.sketches != nil {
		merger = pc.sketches
	}
	merged, err := state.Merge(prior, merger)
	if err != nil {
		return nil, fmt.Errorf("planner: merging states for %s: %w", p, err)
	}
	return merged, nil
}

func recordSchemaResult(ctx context.Context, pc *planCtx, p property.Property, schema property.Schema, results map[property.Key]metric.Any) {
	k := p.Key()
	st := state.NewSchemaState(k.Identifier(), schema)
	merged, err := mergeWithHistory(ctx, pc, p, st)
	if err != nil {
		results[k] = metric.FromProperty(p, err)
		return
	}
	ss, ok := merged.(state.SchemaState)
	if !ok {
		results[k] = metric.FromProperty(p, fmt.Errorf("planner: merged schema state has unexpected type %T", merged))
		return
	}
	results[k] = metric.NewSchema(k.Entity, k.Kind, k.Instance, ss.Schema)
}

func runScans(ctx context.Context, pc *planCtx, scans []scanEntry, noSharing bool, results map[property.Key]metric.Any) error {
	if len(scans) == 0 {
		return nil
	}
	if noSharing {
		for _, c := range scans {
			row, err := pc.exec.QueryRow(ctx, pc.table, "SELECT "+strings.Join(c.op.Aggregations(), ", ")+" FROM "+pc.table)
			if err != nil {
				results[c.prop.Key()] = metric.FromProperty(c.prop, err)
				continue
			}
			recordScanResult(ctx, pc, c.prop, c.op, row, results)
		}
		return nil
	}

	var aggs []string
	for _, c := range scans {
		aggs = append(aggs, c.op.Aggregations()...)
	}
	logf("planner: sharing one scan pass across %d properties", len(scans))
	row, err := pc.exec.QueryRow(ctx, pc.table, "SELECT "+strings.Join(aggs, ", ")+" FROM "+pc.table)
	if err != nil {
		return fmt.Errorf("planner: shared scan pass: %w", err)
	}
	for _, c := range scans {
		recordScanResult(ctx, pc, c.prop, c.op, row, results)
	}
	return nil
}

func recordScanResult(ctx context.Context, pc *planCtx, p property.Property, op operator.ScanShareable, row sqlexec.Row, results map[property.Key]metric.Any) {
	st, err := op.ExtractState(row)
	if err != nil {
		results[p.Key()] = metric.FromProperty(p, err)
		return
	}
	m, err := deriveMetric(ctx, pc, p, st)
	if err != nil {
		results[p.Key()] = metric.FromProperty(p, err)
		return
	}
	results[p.Key()] = m
}

func runGroups(ctx context.Context, pc *planCtx, groups map[string][]groupEntry, results map[property.Key]metric.Any) error {
	// Grouping keys are visited in sorted order so that repeated plans
	// over the same property set issue their materialization queries in
	// the same sequence, keeping planner logf output reproducible.
	gkeys := maps.Keys(groups)
	slices.Sort(gkeys)
	for _, gkey := range gkeys {
		ops := groups[gkey]
		cols := strings.Split(gkey, "\x1f")
		freqTable := frequencyTableName(pc.table, cols)
		query := "SELECT " + strings.Join(cols, ", ") + ", COUNT(*) AS " + operator.FrequencyCountColumn +
			" FROM " + pc.table + " GROUP BY " + strings.Join(cols, ", ")

		if _, err := pc.exec.CreateTableAs(ctx, freqTable, query, true); err != nil {
			err = fmt.Errorf("planner: materializing frequency table for %v: %w", cols, err)
			for _, c := range ops {
				results[c.prop.Key()] = metric.FromProperty(c.prop, err)
			}
			continue
		}
		numRows, err := totalRowCount(ctx, pc.exec, pc.table)
		if err != nil {
			for _, c := range ops {
				results[c.prop.Key()] = metric.FromProperty(c.prop, err)
			}
			continue
		}
		freq := state.NewFrequenciesAndNumRows(0, freqTable, cols, numRows)
		logf("planner: sharing one GROUP BY pass over %v across %d properties", cols, len(ops))
		for _, c := range ops {
			st, err := c.op.ExtractState(ctx, pc.exec, freq)
			if err != nil {
				results[c.prop.Key()] = metric.FromProperty(c.prop, err)
				continue
			}
			m, err := deriveMetric(ctx, pc, c.prop, st)
			if err != nil {
				results[c.prop.Key()] = metric.FromProperty(c.prop, err)
				continue
			}
			results[c.prop.Key()] = m
		}
	}
	return nil
}

func totalRowCount(ctx context.Context, exec sqlexec.Executor, table string) (int64, error) {
	row, err := exec.QueryRow(ctx, table, "SELECT COUNT(*) AS n FROM "+table)
	if err != nil {
		return 0, err
	}
	n, ok := row["n"].(int64)
	if !ok {
		return 0, fmt.Errorf("planner: COUNT(*) did not return an integer")
	}
	return n, nil
}

// frequencyTableName derives a stable, SQL-safe name for the
// materialized (col..., cnt) table backing one set of grouping
// columns, hashed with siphash so repeated plans reuse the same name.
func frequencyTableName(table string, cols []string) string {
	h := siphash.Hash(0x6672657165, 0x6e637954, []byte(table+"|"+strings.Join(cols, ",")))
	return fmt.Sprintf("dq_freq_%x", h)
}

func runSketches(ctx context.Context, pc *planCtx, sketches []sketchEntry, results map[property.Key]metric.Any) error {
	if len(sketches) == 0 {
		return nil
	}
	if pc.sketches == nil {
		err := fmt.Errorf("planner: no sketch engine configured")
		for _, c := range sketches {
			results[c.prop.Key()] = metric.FromProperty(c.prop, err)
		}
		return nil
	}
	for _, c := range sketches {
		where, hasWhere := c.prop.Where()
		column := c.op.Column()
		if hasWhere {
			column = fmt.Sprintf("CASE WHEN (%s) THEN %s ELSE NULL END", where, column)
		}
		query := "SELECT " + column + " AS v FROM " + pc.table
		rows, err := pc.exec.QueryRows(ctx, query)
		if err != nil {
			results[c.prop.Key()] = metric.FromProperty(c.prop, err)
			continue
		}
		st, err := buildSketchState(c.prop, c.op, rows, pc.sketches)
		if err != nil {
			results[c.prop.Key()] = metric.FromProperty(c.prop, err)
			continue
		}
		m, err := deriveMetric(ctx, pc, c.prop, st)
		if err != nil {
			results[c.prop.Key()] = metric.FromProperty(c.prop, err)
			continue
		}
		results[c.prop.Key()] = m
	}
	return nil
}
