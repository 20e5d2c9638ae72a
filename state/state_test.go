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

package state

import (
	"math"
	"testing"

	"github.com/dqcore/dqengine/property"
)

func schemaOf(column, typ string) property.Schema {
	return property.Schema{{Name: column, Type: typ}}
}

func TestMergeEmptyErrors(t *testing.T) {
	if _, err := Merge(nil, nil); err == nil {
		t.Fatalf("expected an error merging an empty state sequence")
	}
}

func TestMergeHeterogeneousTypesErrors(t *testing.T) {
	states := []State{NewMinState(1, 1), NewMaxState(1, 2)}
	if _, err := Merge(states, nil); err == nil {
		t.Fatalf("expected an error merging heterogeneous state types")
	}
}

func TestMergeDifferentPropertiesErrors(t *testing.T) {
	states := []State{NewMinState(1, 1), NewMinState(2, 2)}
	if _, err := Merge(states, nil); err == nil {
		t.Fatalf("expected an error merging states of different properties")
	}
}

func TestMergeMin(t *testing.T) {
	states := []State{NewMinState(1, 5), NewMinState(1, 2), NewMinState(1, 9)}
	merged, err := Merge(states, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got := merged.(MinState).Min; got != 2 {
		t.Errorf("merged min = %v, want 2", got)
	}
}

func TestMergeMax(t *testing.T) {
	states := []State{NewMaxState(1, 5), NewMaxState(1, 2), NewMaxState(1, 9)}
	merged, err := Merge(states, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got := merged.(MaxState).Max; got != 9 {
		t.Errorf("merged max = %v, want 9", got)
	}
}

func TestMergeSum(t *testing.T) {
	states := []State{NewSumState(1, 3), NewSumState(1, 4)}
	merged, err := Merge(states, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got := merged.(SumState).Sum; got != 7 {
		t.Errorf("merged sum = %v, want 7", got)
	}
}

func TestMergeNumMatchesAndCount(t *testing.T) {
	states := []State{
		NewNumMatchesAndCount(1, 3, 10),
		NewNumMatchesAndCount(1, 2, 5),
	}
	merged, err := Merge(states, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	got := merged.(NumMatchesAndCount)
	if got.NumMatches != 5 || got.Count != 15 {
		t.Errorf("merged = %+v, want NumMatches=5 Count=15", got)
	}
}

func TestMergeMeanIsIdentityOverOnePartition(t *testing.T) {
	single := []State{NewMeanState(1, 30, 6)}
	merged, err := Merge(single, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got := merged.(MeanState).Mean(); got != 5 {
		t.Errorf("mean over a single partition = %v, want 5", got)
	}
}

func TestMergeMeanCombinesPartitions(t *testing.T) {
	states := []State{NewMeanState(1, 9, 3), NewMeanState(1, 21, 3)}
	merged, err := Merge(states, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	got := merged.(MeanState)
	if got.Count != 6 {
		t.Errorf("merged count = %d, want 6", got.Count)
	}
	if mean := got.Mean(); mean != 5 {
		t.Errorf("merged mean = %v, want 5", mean)
	}
}

func TestMergeStandardDeviationChanWelford(t *testing.T) {
	// Partition A = {1,2}, partition B = {3,4}; combined = {1,2,3,4}.
	a := NewStandardDeviationState(1, 2, 1.5, 0.5, 0)
	b := NewStandardDeviationState(1, 2, 3.5, 0.5, 0)
	merged, err := Merge([]State{a, b}, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	got := merged.(StandardDeviationState)
	if got.N != 4 {
		t.Errorf("N = %v, want 4", got.N)
	}
	if got.Avg != 2.5 {
		t.Errorf("Avg = %v, want 2.5", got.Avg)
	}
	if math.Abs(got.M2-5.0) > 1e-9 {
		t.Errorf("M2 = %v, want 5.0", got.M2)
	}
	wantStdDev := math.Sqrt(5.0 / 3.0)
	if math.Abs(got.StdDev-wantStdDev) > 1e-9 {
		t.Errorf("StdDev = %v, want %v", got.StdDev, wantStdDev)
	}
}

func TestMergeStandardDeviationSinglePartitionIsIdentity(t *testing.T) {
	a := NewStandardDeviationState(1, 4, 2.5, 5.0, math.Sqrt(5.0/3.0))
	merged, err := Merge([]State{a}, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	got := merged.(StandardDeviationState)
	if got.N != 4 || got.Avg != 2.5 || got.M2 != 5.0 {
		t.Errorf("single-partition merge changed the state: %+v", got)
	}
}

func TestMergeSchemaMismatchErrors(t *testing.T) {
	a := NewSchemaState(1, schemaOf("x", "INTEGER"))
	b := NewSchemaState(1, schemaOf("x", "VARCHAR"))
	if _, err := Merge([]State{a, b}, nil); err == nil {
		t.Fatalf("expected an error merging mismatched schemas")
	}
}

func TestMergeSchemaAgreeingIsIdentity(t *testing.T) {
	a := NewSchemaState(1, schemaOf("x", "INTEGER"))
	b := NewSchemaState(1, schemaOf("x", "INTEGER"))
	merged, err := Merge([]State{a, b}, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(merged.(SchemaState).Schema) != 1 {
		t.Errorf("unexpected merged schema: %+v", merged)
	}
}

func TestMergeFrequenciesAndNumRowsAlwaysErrors(t *testing.T) {
	a := NewFrequenciesAndNumRows(1, "dq_freq_aaa", []string{"col"}, 10)
	b := NewFrequenciesAndNumRows(1, "dq_freq_aaa", []string{"col"}, 5)
	if _, err := Merge([]State{a, b}, nil); err == nil {
		t.Fatalf("expected FrequenciesAndNumRows merging to always error")
	}
}

func TestMergeQuantileRequiresSketchMerger(t *testing.T) {
	q := NewQuantileState(1, "", 0.5, "floats")
	if _, err := Merge([]State{q, q}, nil); err == nil {
		t.Fatalf("expected an error merging QuantileState with no sketch merger wired")
	}
}
