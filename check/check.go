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

// Package check evaluates declarative Checks (collections of
// Constraints over measured Properties) against a run's metrics,
// producing a CheckResult per Check and an overall verification
// status. Grounded on original_source/.../constraints.py and
// checks.py.
package check

import (
	"fmt"
	"strings"

	"github.com/dqcore/dqengine/dqerr"
	"github.com/dqcore/dqengine/metric"
	"github.com/dqcore/dqengine/property"
)

// Status is the severity of a Check or of an entire verification run.
// The zero value, Success, is also the identity for composing statuses
// across many checks: combining never lowers the overall status.
type Status int

const (
	Success Status = iota
	Warning
	Error
)

func (s Status) String() string {
	switch s {
	case Success:
		return "Success"
	case Warning:
		return "Warning"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// ConstraintResult is the outcome of evaluating one Constraint.
type ConstraintResult struct {
	OK      bool
	Message string
}

// Constraint asserts something about one or more measured properties.
type Constraint interface {
	Evaluate(metrics map[property.Key]metric.Any) ConstraintResult
}

// Assertion tests a single double-valued metric.
type Assertion interface {
	Assert(value float64) bool
}

type lessThan struct{ bound float64 }

func (a lessThan) Assert(v float64) bool { return v < a.bound }

// LessThan holds when the metric value is strictly less than bound.
func LessThan(bound float64) Assertion { return lessThan{bound} }

type greaterThan struct{ bound float64 }

func (a greaterThan) Assert(v float64) bool { return v > a.bound }

// GreaterThan holds when the metric value is strictly greater than bound.
func GreaterThan(bound float64) Assertion { return greaterThan{bound} }

type inRange struct{ min, max float64 }

func (a inRange) Assert(v float64) bool { return v >= a.min && v <= a.max }

// InRange holds when min <= value <= max.
func InRange(min, max float64) Assertion { return inRange{min, max} }

type exactly struct{ value float64 }

func (a exactly) Assert(v float64) bool { return v == a.value }

// Exactly holds when the metric value equals value.
func Exactly(value float64) Assertion { return exactly{value} }

// IsOne holds when the metric value equals 1.0 exactly.
func IsOne() Assertion { return exactly{1.0} }

type isApproxOne struct{ tolerance float64 }

func (a isApproxOne) Assert(v float64) bool { return v >= 1.0-a.tolerance && v <= 1.0 }

// IsApproxOne holds when the metric value is within tolerance of 1.0
// from below (the standard "fraction of rows" completeness check).
func IsApproxOne(tolerance float64) Assertion { return isApproxOne{tolerance} }

type custom struct{ fn func(float64) bool }

func (a custom) Assert(v float64) bool { return a.fn(v) }

// Custom wraps a caller-supplied predicate as an Assertion.
func Custom(fn func(float64) bool) Assertion { return custom{fn} }

// AnalysisBased is the primary Constraint: it looks up p's metric for
// the run and applies assertion to it. Hint is appended to the failure
// message verbatim when the assertion does not hold, letting authors
// explain the constraint in domain terms.
type AnalysisBased struct {
	Property  property.Property
	Assertion Assertion
	Hint      string
}

// Evaluate implements Constraint. The three failure messages below are
// part of the evaluator's observable contract: "Missing Analysis" when
// the run never measured Property, a wrapped failure message when the
// measurement itself failed, and the constraint-violation message
// otherwise.
func (c AnalysisBased) Evaluate(metrics map[property.Key]metric.Any) ConstraintResult {
	m, ok := metrics[c.Property.Key()]
	if !ok {
		return ConstraintResult{OK: false, Message: "Missing Analysis"}
	}
	if m.Failed() {
		return ConstraintResult{OK: false, Message: fmt.Sprintf("Can't execute the assertion: %s", m.FailureMessage())}
	}
	dm, ok := m.(metric.DoubleMetric)
	if !ok {
		return ConstraintResult{OK: false, Message: "Can't execute the assertion: metric is not a double-valued metric"}
	}
	v, err := dm.Value.Get()
	if err != nil {
		return ConstraintResult{OK: false, Message: fmt.Sprintf("Can't execute the assertion: %s", err)}
	}
	held, err := assertSafely(c.Assertion, v)
	if err != nil {
		if ca, ok := err.(*dqerr.ConstraintAssertion); ok {
			return ConstraintResult{OK: false, Message: fmt.Sprintf("Can't execute the assertion: %s", ca.Cause)}
		}
		return ConstraintResult{OK: false, Message: fmt.Sprintf("Can't execute the assertion: %s", err)}
	}
	if !held {
		msg := fmt.Sprintf("Value %v does not meet the constraint requirement.", v)
		if c.Hint != "" {
			msg += " " + c.Hint
		}
		return ConstraintResult{OK: false, Message: msg}
	}
	return ConstraintResult{OK: true}
}

// assertSafely calls a.Assert(v), converting a panicking predicate (a
// Custom assertion is caller-supplied and may raise) into a
// dqerr.ConstraintAssertion instead of crashing the whole run.
func assertSafely(a Assertion, v float64) (held bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			rerr, ok := r.(error)
			if !ok {
				rerr = fmt.Errorf("%v", r)
			}
			err = &dqerr.ConstraintAssertion{Cause: rerr}
		}
	}()
	return a.Assert(v), nil
}

// Filtered documents that inner was built against a where-filtered
// Property; it does not alter evaluation (the filter is already baked
// into the property's compiled SQL), it only carries the filter through
// for reporting.
type Filtered struct {
	Inner Constraint
	Where string
}

func (f Filtered) Evaluate(metrics map[property.Key]metric.Any) ConstraintResult {
	return f.Inner.Evaluate(metrics)
}

// Negated inverts inner's pass/fail outcome. A failed (could-not-execute)
// inner evaluation is never treated as a pass.
type Negated struct {
	Inner Constraint
}

func (n Negated) Evaluate(metrics map[property.Key]metric.Any) ConstraintResult {
	r := n.Inner.Evaluate(metrics)
	if !r.OK {
		if r.Message == "Missing Analysis" || strings.HasPrefix(r.Message, "Can't execute the assertion") {
			return r
		}
		return ConstraintResult{OK: true}
	}
	return ConstraintResult{OK: false, Message: "negated constraint held but was expected not to"}
}

// Check groups Constraints under one severity Level: if any Constraint
// fails, the whole Check's status becomes Level.
type Check struct {
	Level       Status
	Description string
	Constraints []Constraint
}

// CheckResult is the outcome of evaluating one Check.
type CheckResult struct {
	Check             Check
	Status            Status
	ConstraintResults []ConstraintResult
}

// Evaluate runs every one of c's Constraints against metrics and
// derives c's overall status.
func Evaluate(c Check, metrics map[property.Key]metric.Any) CheckResult {
	status := Success
	results := make([]ConstraintResult, 0, len(c.Constraints))
	for _, constraint := range c.Constraints {
		r := constraint.Evaluate(metrics)
		results = append(results, r)
		if !r.OK {
			status = c.Level
		}
	}
	return CheckResult{Check: c, Status: status, ConstraintResults: results}
}

// VerificationStatus composes many CheckResults into one run-level
// status: the worst (highest-severity) status among them, or Success
// for an empty suite.
func VerificationStatus(results []CheckResult) Status {
	status := Success
	for _, r := range results {
		if r.Status > status {
			status = r.Status
		}
	}
	return status
}
