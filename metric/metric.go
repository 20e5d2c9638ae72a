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

// Package metric holds the outcome of evaluating a Property: either a
// successful value or a captured failure.
package metric

import (
	"github.com/dqcore/dqengine/property"
)

// Result is a Try-style box around either a successful value of type V
// or a failure. It never panics on access: Get returns the zero value
// alongside the error when the Result is a failure.
type Result[V any] struct {
	value V
	err   error
}

// Success wraps a successful value.
func Success[V any](v V) Result[V] { return Result[V]{value: v} }

// Failure wraps a captured error.
func Failure[V any](err error) Result[V] { return Result[V]{err: err} }

// IsSuccess reports whether the Result holds a value rather than an error.
func (r Result[V]) IsSuccess() bool { return r.err == nil }

// Get returns the held value and a nil error on success, or the zero
// value and the captured error on failure.
func (r Result[V]) Get() (V, error) { return r.value, r.err }

// Metric is the evaluated outcome of a Property: entity/name/instance
// identify which property it belongs to, Value carries the result.
type Metric[V any] struct {
	EntityVal   property.Entity
	NameVal     string
	InstanceVal string
	Value       Result[V]
	typ         property.MetricType
}

// DoubleMetric is the outcome of any numeric-valued property.
type DoubleMetric = Metric[float64]

// SchemaMetric is the outcome of the Schema property.
type SchemaMetric = Metric[property.Schema]

// NewDouble constructs a successful DoubleMetric.
func NewDouble(entity property.Entity, name, instance string, value float64) DoubleMetric {
	return DoubleMetric{EntityVal: entity, NameVal: name, InstanceVal: instance, Value: Success(value), typ: property.DoubleMetricType}
}

// NewSchema constructs a successful SchemaMetric.
func NewSchema(entity property.Entity, name, instance string, value property.Schema) SchemaMetric {
	return SchemaMetric{EntityVal: entity, NameVal: name, InstanceVal: instance, Value: Success(value), typ: property.SchemaMetricType}
}

// FailedDouble constructs a failed DoubleMetric carrying err.
func FailedDouble(entity property.Entity, name, instance string, err error) DoubleMetric {
	return DoubleMetric{EntityVal: entity, NameVal: name, InstanceVal: instance, Value: Failure[float64](err), typ: property.DoubleMetricType}
}

// FailedSchema constructs a failed SchemaMetric carrying err.
func FailedSchema(entity property.Entity, name, instance string, err error) SchemaMetric {
	return SchemaMetric{EntityVal: entity, NameVal: name, InstanceVal: instance, Value: Failure[property.Schema](err), typ: property.SchemaMetricType}
}

// FromProperty builds a failure metric of the correct variant for p
// (a precondition failure, an unsupported-property error, ...).
// This is the "metric_from_failure(property)" helper from the source,
// fixed to take a Property (the source's metric_from_empty passed the
// wrong argument types — see spec.md's Design Notes).
func FromProperty(p property.Property, err error) Any {
	k := p.Key()
	switch p.MetricType() {
	case property.SchemaMetricType:
		m := FailedSchema(k.Entity, k.Kind, k.Instance, err)
		return m
	default:
		m := FailedDouble(k.Entity, k.Kind, k.Instance, err)
		return m
	}
}

// Entity reports which entity kind this metric was measured over.
func (m Metric[V]) Entity() property.Entity { return m.EntityVal }

// PropertyName reports the originating property's kind tag.
func (m Metric[V]) PropertyName() string { return m.NameVal }

// Instance reports the originating property's canonical instance string.
func (m Metric[V]) Instance() string { return m.InstanceVal }

// Failed reports whether this metric's Value is a captured failure.
func (m Metric[V]) Failed() bool { return !m.Value.IsSuccess() }

// FailureMessage returns the captured failure's message, or "" on success.
func (m Metric[V]) FailureMessage() string {
	_, err := m.Value.Get()
	if err == nil {
		return ""
	}
	return err.Error()
}

// MetricType reports whether this is a DoubleMetric or a SchemaMetric.
func (m Metric[V]) MetricType() property.MetricType { return m.typ }

// Any is the narrow interface both DoubleMetric and SchemaMetric
// satisfy, letting the planner and check evaluator hold heterogeneous
// metrics in one map without reflection.
type Any interface {
	Entity() property.Entity
	PropertyName() string
	Instance() string
	Failed() bool
	FailureMessage() string
	MetricType() property.MetricType
}
