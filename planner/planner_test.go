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

package planner

import (
	"context"
	"math"
	"testing"

	"github.com/dqcore/dqengine/metric"
	"github.com/dqcore/dqengine/property"
	"github.com/dqcore/dqengine/repository"
	"github.com/dqcore/dqengine/sqlexec/memtable"
)

func doubleValue(t *testing.T, results map[property.Key]metric.Any, p property.Property) float64 {
	t.Helper()
	m, ok := results[p.Key()]
	if !ok {
		t.Fatalf("no metric recorded for %s", p)
	}
	if m.Failed() {
		t.Fatalf("metric for %s failed: %s", p, m.FailureMessage())
	}
	dm, ok := m.(metric.DoubleMetric)
	if !ok {
		t.Fatalf("metric for %s is not a DoubleMetric: %T", p, m)
	}
	v, err := dm.Value.Get()
	if err != nil {
		t.Fatalf("Get() for %s: %v", p, err)
	}
	return v
}

func TestPlanCompleteness(t *testing.T) {
	store := memtable.NewStore()
	schema := property.Schema{{Name: "email", Type: "VARCHAR"}}
	rows := make([]map[string]any, 10)
	for i := range rows {
		if i < 8 {
			rows[i] = map[string]any{"email": "user"}
		} else {
			rows[i] = map[string]any{}
		}
	}
	store.AddTable(memtable.NewTable("users", schema, rows))

	p := property.NewCompleteness("email", nil)
	results, err := Plan(context.Background(), "users", "users", []property.Property{p}, repository.NewInMemory(), store, Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got := doubleValue(t, results, p); got != 0.8 {
		t.Errorf("Completeness = %v, want 0.8", got)
	}
}

func groupingTable() *memtable.Store {
	store := memtable.NewStore()
	schema := property.Schema{{Name: "grp", Type: "VARCHAR"}}
	rows := []map[string]any{
		{"grp": "A"}, {"grp": "B"}, {"grp": "B"}, {"grp": "C"}, {"grp": "C"},
	}
	store.AddTable(memtable.NewTable("groups", schema, rows))
	return store
}

func TestPlanUniquenessDistinctnessUniqueValueRatio(t *testing.T) {
	store := groupingTable()
	uniq := property.NewUniqueness([]string{"grp"}, nil)
	dist := property.NewDistinctness([]string{"grp"}, nil)
	ratio := property.NewUniqueValueRatio([]string{"grp"}, nil)

	results, err := Plan(context.Background(), "groups", "groups", []property.Property{uniq, dist, ratio}, repository.NewInMemory(), store, Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got := doubleValue(t, results, uniq); got != 0.2 {
		t.Errorf("Uniqueness = %v, want 0.2", got)
	}
	if got := doubleValue(t, results, dist); got != 0.6 {
		t.Errorf("Distinctness = %v, want 0.6", got)
	}
	want := 1.0 / 3.0
	if got := doubleValue(t, results, ratio); math.Abs(got-want) > 1e-12 {
		t.Errorf("UniqueValueRatio = %v, want %v", got, want)
	}
}

func numericStatsTable() *memtable.Store {
	store := memtable.NewStore()
	schema := property.Schema{{Name: "value", Type: "DOUBLE"}}
	rows := make([]map[string]any, 6)
	for i := range rows {
		rows[i] = map[string]any{"value": float64(i + 1)}
	}
	store.AddTable(memtable.NewTable("nums", schema, rows))
	return store
}

func TestPlanMeanMinMaxStdDev(t *testing.T) {
	store := numericStatsTable()
	mean := property.NewMean("value", nil)
	min := property.NewMinimum("value", nil)
	max := property.NewMaximum("value", nil)
	stddev := property.NewStandardDeviation("value", nil)

	results, err := Plan(context.Background(), "nums", "nums", []property.Property{mean, min, max, stddev}, repository.NewInMemory(), store, Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got := doubleValue(t, results, mean); got != 3.5 {
		t.Errorf("Mean = %v, want 3.5", got)
	}
	if got := doubleValue(t, results, min); got != 1 {
		t.Errorf("Minimum = %v, want 1", got)
	}
	if got := doubleValue(t, results, max); got != 6 {
		t.Errorf("Maximum = %v, want 6", got)
	}
	want := math.Sqrt(3.5)
	if got := doubleValue(t, results, stddev); math.Abs(got-want) > 1e-9 {
		t.Errorf("StandardDeviation = %v, want %v", got, want)
	}
}

func TestPlanDeduplicatesRepeatedProperties(t *testing.T) {
	store := numericStatsTable()
	mean := property.NewMean("value", nil)
	results, err := Plan(context.Background(), "nums", "nums", []property.Property{mean, mean, mean}, repository.NewInMemory(), store, Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results for one distinct property repeated thrice, want 1", len(results))
	}
}

func TestPlanPreconditionFailureDoesNotAbortTheRun(t *testing.T) {
	store := numericStatsTable()
	ok := property.NewMean("value", nil)
	missing := property.NewMean("does_not_exist", nil)
	results, err := Plan(context.Background(), "nums", "nums", []property.Property{ok, missing}, repository.NewInMemory(), store, Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if _, present := results[ok.Key()]; !present {
		t.Fatalf("expected a result for the valid property")
	}
	m, present := results[missing.Key()]
	if !present {
		t.Fatalf("expected a result for the invalid property")
	}
	if !m.Failed() {
		t.Fatalf("expected a failure metric for a property over a missing column")
	}
}

func TestPlanSharingIsEquivalentToNoSharing(t *testing.T) {
	mean := property.NewMean("value", nil)
	min := property.NewMinimum("value", nil)
	max := property.NewMaximum("value", nil)
	props := []property.Property{mean, min, max}

	shared, err := Plan(context.Background(), "nums", "nums", props, repository.NewInMemory(), numericStatsTable(), Options{NoSharing: false})
	if err != nil {
		t.Fatalf("Plan (shared): %v", err)
	}
	unshared, err := Plan(context.Background(), "nums", "nums", props, repository.NewInMemory(), numericStatsTable(), Options{NoSharing: true})
	if err != nil {
		t.Fatalf("Plan (unshared): %v", err)
	}
	for _, p := range props {
		a := doubleValue(t, shared, p)
		b := doubleValue(t, unshared, p)
		if a != b {
			t.Errorf("%s: shared = %v, unshared = %v, want equal", p, a, b)
		}
	}
}

func TestPlanMergesStateAcrossPartitions(t *testing.T) {
	repo := repository.NewInMemory()
	mean := property.NewMean("value", nil)

	store1 := memtable.NewStore()
	schema := property.Schema{{Name: "value", Type: "DOUBLE"}}
	store1.AddTable(memtable.NewTable("p1", schema, []map[string]any{
		{"value": 1.0}, {"value": 2.0}, {"value": 3.0},
	}))
	first, err := Plan(context.Background(), "readings", "p1", []property.Property{mean}, repo, store1, Options{})
	if err != nil {
		t.Fatalf("Plan (first partition): %v", err)
	}
	if got := doubleValue(t, first, mean); got != 2.0 {
		t.Errorf("Mean over first partition alone = %v, want 2.0", got)
	}

	store2 := memtable.NewStore()
	store2.AddTable(memtable.NewTable("p2", schema, []map[string]any{
		{"value": 4.0}, {"value": 5.0},
	}))
	second, err := Plan(context.Background(), "readings", "p2", []property.Property{mean}, repo, store2, Options{})
	if err != nil {
		t.Fatalf("Plan (second partition): %v", err)
	}
	if got := doubleValue(t, second, mean); got != 3.0 {
		t.Errorf("Mean merged across both partitions = %v, want 3.0 ((1+2+3+4+5)/5)", got)
	}
}

func TestPlanSchemaProperty(t *testing.T) {
	store := numericStatsTable()
	p := property.NewSchemaProperty()
	results, err := Plan(context.Background(), "nums", "nums", []property.Property{p}, repository.NewInMemory(), store, Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	m, ok := results[p.Key()]
	if !ok {
		t.Fatalf("no result for the schema property")
	}
	sm, ok := m.(metric.SchemaMetric)
	if !ok {
		t.Fatalf("schema property metric is not a SchemaMetric: %T", m)
	}
	schema, err := sm.Value.Get()
	if err != nil {
		t.Fatalf("Get(): %v", err)
	}
	if len(schema) != 1 || schema[0].Name != "value" {
		t.Errorf("schema = %+v, want [{value DOUBLE}]", schema)
	}
}
