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

package metric

import (
	"errors"
	"testing"

	"github.com/dqcore/dqengine/property"
)

func TestResultSuccess(t *testing.T) {
	r := Success(1.5)
	if !r.IsSuccess() {
		t.Fatalf("expected IsSuccess")
	}
	v, err := r.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1.5 {
		t.Errorf("Get() = %v, want 1.5", v)
	}
}

func TestResultFailure(t *testing.T) {
	r := Failure[float64](errors.New("boom"))
	if r.IsSuccess() {
		t.Fatalf("expected failure")
	}
	v, err := r.Get()
	if err == nil {
		t.Fatalf("expected an error")
	}
	if v != 0 {
		t.Errorf("Get() on failure = %v, want zero value", v)
	}
}

func TestDoubleMetricSatisfiesAny(t *testing.T) {
	m := NewDouble(property.Column, "Completeness", "email", 0.9)
	var a Any = m
	if a.Failed() {
		t.Errorf("fresh success metric reports Failed")
	}
	if a.PropertyName() != "Completeness" {
		t.Errorf("PropertyName() = %q, want Completeness", a.PropertyName())
	}
	if a.Instance() != "email" {
		t.Errorf("Instance() = %q, want email", a.Instance())
	}
	if a.MetricType() != property.DoubleMetricType {
		t.Errorf("MetricType() = %v, want DoubleMetricType", a.MetricType())
	}
	if a.FailureMessage() != "" {
		t.Errorf("FailureMessage() on success = %q, want empty", a.FailureMessage())
	}
}

func TestSchemaMetricSatisfiesAny(t *testing.T) {
	s := property.Schema{{Name: "a", Type: "INTEGER"}}
	m := NewSchema(property.Dataset, "Schema", "", s)
	var a Any = m
	if a.Failed() {
		t.Errorf("fresh success metric reports Failed")
	}
	if a.MetricType() != property.SchemaMetricType {
		t.Errorf("MetricType() = %v, want SchemaMetricType", a.MetricType())
	}
}

func TestFailedDouble(t *testing.T) {
	m := FailedDouble(property.Column, "Minimum", "amount", errors.New("no rows"))
	if !m.Failed() {
		t.Fatalf("expected Failed")
	}
	if m.FailureMessage() != "no rows" {
		t.Errorf("FailureMessage() = %q, want %q", m.FailureMessage(), "no rows")
	}
}

func TestFromPropertyDouble(t *testing.T) {
	p := property.NewMinimum("amount", nil)
	m := FromProperty(p, errors.New("missing column"))
	if !m.Failed() {
		t.Fatalf("expected a failed metric")
	}
	if m.MetricType() != property.DoubleMetricType {
		t.Errorf("MetricType() = %v, want DoubleMetricType", m.MetricType())
	}
	if m.PropertyName() != "Minimum" || m.Instance() != "amount" {
		t.Errorf("PropertyName/Instance = %q/%q, want Minimum/amount", m.PropertyName(), m.Instance())
	}
}

func TestFromPropertySchema(t *testing.T) {
	p := property.NewSchemaProperty()
	m := FromProperty(p, errors.New("introspection failed"))
	if !m.Failed() {
		t.Fatalf("expected a failed metric")
	}
	if m.MetricType() != property.SchemaMetricType {
		t.Errorf("MetricType() = %v, want SchemaMetricType", m.MetricType())
	}
}
