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

// Package state holds the intermediate, reducible form of a property's
// measurement, and the algebra that merges such states across runs.
package state

import "github.com/dqcore/dqengine/property"

// State is a reducible intermediate form of a property's measurement.
// Every persisted state carries the id of the property it belongs to,
// so it can be rebound on reload.
type State interface {
	PropertyID() uint64
	TypeName() string
}

type id struct {
	ID uint64 `json:"id"`
}

func (s id) PropertyID() uint64 { return s.ID }

// NumMatches counts how many rows matched some predicate (e.g. Size).
type NumMatches struct {
	id
	NumMatches int64 `json:"num_matches"`
}

func (NumMatches) TypeName() string { return "NumMatches" }

func NewNumMatches(pid uint64, n int64) NumMatches {
	return NumMatches{id: id{pid}, NumMatches: n}
}

// NumMatchesAndCount counts how many rows matched and how many rows
// were considered (e.g. Completeness, Compliance, PatternMatch).
// Invariant: NumMatches <= Count.
type NumMatchesAndCount struct {
	id
	NumMatches int64 `json:"num_matches"`
	Count      int64 `json:"count"`
}

func (NumMatchesAndCount) TypeName() string { return "NumMatchesAndCount" }

func NewNumMatchesAndCount(pid uint64, numMatches, count int64) NumMatchesAndCount {
	return NumMatchesAndCount{id: id{pid}, NumMatches: numMatches, Count: count}
}

// MinState holds the smallest value observed.
type MinState struct {
	id
	Min float64 `json:"min_value"`
}

func (MinState) TypeName() string { return "MinState" }

func NewMinState(pid uint64, v float64) MinState { return MinState{id: id{pid}, Min: v} }

// MaxState holds the largest value observed.
type MaxState struct {
	id
	Max float64 `json:"max_value"`
}

func (MaxState) TypeName() string { return "MaxState" }

func NewMaxState(pid uint64, v float64) MaxState { return MaxState{id: id{pid}, Max: v} }

// SumState holds a running sum.
type SumState struct {
	id
	Sum float64 `json:"sum_value"`
}

func (SumState) TypeName() string { return "SumState" }

func NewSumState(pid uint64, v float64) SumState { return SumState{id: id{pid}, Sum: v} }

// MeanState holds the components needed to derive a mean.
// Invariant: Count >= 1 when valid.
type MeanState struct {
	id
	Total float64 `json:"total"`
	Count int64   `json:"count"`
}

func (MeanState) TypeName() string { return "MeanState" }

func NewMeanState(pid uint64, total float64, count int64) MeanState {
	return MeanState{id: id{pid}, Total: total, Count: count}
}

// Mean returns Total/Count.
func (m MeanState) Mean() float64 { return m.Total / float64(m.Count) }

// StandardDeviationState holds Chan-Welford streaming variance
// components. Invariants: M2 >= 0; StdDev = sqrt(M2/(N-1)) when N>1,
// else 0.
type StandardDeviationState struct {
	id
	N      float64 `json:"n"`
	Avg    float64 `json:"avg"`
	M2     float64 `json:"m2"`
	StdDev float64 `json:"stddev"`
}

func (StandardDeviationState) TypeName() string { return "StandardDeviationState" }

func NewStandardDeviationState(pid uint64, n, avg, m2, stddev float64) StandardDeviationState {
	return StandardDeviationState{id: id{pid}, N: n, Avg: avg, M2: m2, StdDev: stddev}
}

// QuantileState carries a serialized KLL sketch plus the quantile it
// will be queried at and the sketch's item type.
type QuantileState struct {
	id
	SketchBytes string  `json:"sketch_bytes"` // base64 of the zstd-compressed serialized sketch
	Q           float64 `json:"q"`
	SketchType  string  `json:"sketch_type"` // always "floats": integer columns are sketched as float64 too
}

func (QuantileState) TypeName() string { return "QuantileState" }

func NewQuantileState(pid uint64, sketchBytes string, q float64, sketchType string) QuantileState {
	return QuantileState{id: id{pid}, SketchBytes: sketchBytes, Q: q, SketchType: sketchType}
}

// ApproxDistinctState carries a serialized HLL sketch plus its running
// estimate and the number of rows ingested so far.
type ApproxDistinctState struct {
	id
	SketchBytes string  `json:"sketch_bytes"`
	Estimate    float64 `json:"estimate"`
	NumRows     int64   `json:"num_rows"`
}

func (ApproxDistinctState) TypeName() string { return "ApproxDistinctState" }

func NewApproxDistinctState(pid uint64, sketchBytes string, estimate float64, numRows int64) ApproxDistinctState {
	return ApproxDistinctState{id: id{pid}, SketchBytes: sketchBytes, Estimate: estimate, NumRows: numRows}
}

// SchemaState carries the dataset's column -> type mapping.
type SchemaState struct {
	id
	Schema property.Schema `json:"schema"`
}

func (SchemaState) TypeName() string { return "SchemaState" }

func NewSchemaState(pid uint64, schema property.Schema) SchemaState {
	return SchemaState{id: id{pid}, Schema: schema}
}

// FrequenciesAndNumRows is a tabular state: a reference to a
// materialized (grouping_columns..., count) table plus the total row
// count the grouping was computed over. It is never mergeable (see
// Merge) and is the only state variant that may carry an in-memory
// snapshot of its rows alongside the table reference.
type FrequenciesAndNumRows struct {
	id
	Table           string   `json:"frequencies_table"`
	GroupingColumns []string `json:"grouping_columns"`
	NumRows         int64    `json:"num_rows"`

	// Rows is an optional in-memory snapshot of the table's rows. No
	// package of the engine populates it: the planner always
	// materializes frequency tables as TEMP and never copies them out.
	Rows []map[string]any `json:"-"`
}

func (FrequenciesAndNumRows) TypeName() string { return "FrequenciesAndNumRows" }

func NewFrequenciesAndNumRows(pid uint64, table string, groupingColumns []string, numRows int64) FrequenciesAndNumRows {
	return FrequenciesAndNumRows{id: id{pid}, Table: table, GroupingColumns: groupingColumns, NumRows: numRows}
}
