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
	"fmt"
	"math"
	"reflect"

	"github.com/dqcore/dqengine/dqerr"
	"github.com/dqcore/dqengine/property"
)

// SketchMerger performs the deserialize -> merge -> re-serialize cycle
// for sketch-backed states. The state package has no knowledge of KLL
// or HLL internals; Merge delegates to whichever SketchMerger the
// caller wires in (see package sketch), matching spec.md's separation
// of the sketch engine from the core merge algebra.
type SketchMerger interface {
	MergeQuantile(states []QuantileState) (QuantileState, error)
	MergeApproxDistinct(states []ApproxDistinctState) (ApproxDistinctState, error)
}

// Merge combines a sequence of states that all belong to the same
// property into a single state. All elements of states must share one
// dynamic type and property id; mismatches are reported as
// dqerr.StateMerging. sketches may be nil if states contains no
// QuantileState/ApproxDistinctState values.
func Merge(states []State, sketches SketchMerger) (State, error) {
	if len(states) == 0 {
		return nil, &dqerr.StateMerging{Message: "cannot merge an empty state sequence"}
	}
	first := states[0]
	for _, s := range states[1:] {
		if reflect.TypeOf(s) != reflect.TypeOf(first) {
			return nil, &dqerr.StateMerging{
				Message: fmt.Sprintf("cannot merge heterogeneous states %T and %T", first, s),
			}
		}
		if s.PropertyID() != first.PropertyID() {
			return nil, &dqerr.StateMerging{
				Message: "cannot merge states belonging to different properties",
			}
		}
	}

	switch first.(type) {
	case MinState:
		return mergeMin(states), nil
	case MaxState:
		return mergeMax(states), nil
	case SumState:
		return mergeSum(states), nil
	case NumMatches:
		return mergeNumMatches(states), nil
	case NumMatchesAndCount:
		return mergeNumMatchesAndCount(states), nil
	case MeanState:
		return mergeMean(states), nil
	case StandardDeviationState:
		return mergeStdDev(states), nil
	case SchemaState:
		return mergeSchema(states)
	case QuantileState:
		if sketches == nil {
			return nil, &dqerr.StateMerging{Message: "no sketch merger wired for QuantileState"}
		}
		qs := make([]QuantileState, len(states))
		for i, s := range states {
			qs[i] = s.(QuantileState)
		}
		merged, err := sketches.MergeQuantile(qs)
		if err != nil {
			return nil, err
		}
		return merged, nil
	case ApproxDistinctState:
		if sketches == nil {
			return nil, &dqerr.StateMerging{Message: "no sketch merger wired for ApproxDistinctState"}
		}
		as := make([]ApproxDistinctState, len(states))
		for i, s := range states {
			as[i] = s.(ApproxDistinctState)
		}
		merged, err := sketches.MergeApproxDistinct(as)
		if err != nil {
			return nil, err
		}
		return merged, nil
	case FrequenciesAndNumRows:
		return nil, &dqerr.StateMerging{Message: "FrequenciesAndNumRows is not mergeable"}
	default:
		return nil, &dqerr.StateMerging{Message: fmt.Sprintf("unknown state type %T", first)}
	}
}

func mergeMin(states []State) State {
	result := states[0].(MinState)
	for _, s := range states[1:] {
		if v := s.(MinState).Min; v < result.Min {
			result.Min = v
		}
	}
	return result
}

func mergeMax(states []State) State {
	result := states[0].(MaxState)
	for _, s := range states[1:] {
		if v := s.(MaxState).Max; v > result.Max {
			result.Max = v
		}
	}
	return result
}

func mergeSum(states []State) State {
	result := states[0].(SumState)
	var total float64
	for _, s := range states {
		total += s.(SumState).Sum
	}
	result.Sum = total
	return result
}

func mergeNumMatches(states []State) State {
	result := states[0].(NumMatches)
	var total int64
	for _, s := range states {
		total += s.(NumMatches).NumMatches
	}
	result.NumMatches = total
	return result
}

func mergeNumMatchesAndCount(states []State) State {
	result := states[0].(NumMatchesAndCount)
	var matches, count int64
	for _, s := range states {
		c := s.(NumMatchesAndCount)
		matches += c.NumMatches
		count += c.Count
	}
	result.NumMatches, result.Count = matches, count
	return result
}

func mergeMean(states []State) State {
	result := states[0].(MeanState)
	var total float64
	var count int64
	for _, s := range states {
		m := s.(MeanState)
		total += m.Total
		count += m.Count
	}
	result.Total, result.Count = total, count
	return result
}

// mergeStdDev implements the Chan-Welford parallel variance
// combination from spec.md §4.6, folding each incoming state into a
// running accumulator in order.
func mergeStdDev(states []State) State {
	acc := states[0].(StandardDeviationState)
	for _, s := range states[1:] {
		next := s.(StandardDeviationState)
		n := acc.N + next.N
		avg := (next.N*next.Avg + acc.N*acc.Avg) / n
		delta := next.Avg - acc.Avg
		m2 := acc.M2 + next.M2 + delta*delta*acc.N*next.N/n
		stddev := 0.0
		if n > 1 {
			stddev = math.Sqrt(m2 / (n - 1))
		}
		acc.N, acc.Avg, acc.M2, acc.StdDev = n, avg, m2, stddev
	}
	return acc
}

func mergeSchema(states []State) (State, error) {
	first := states[0].(SchemaState)
	for _, s := range states[1:] {
		other := s.(SchemaState)
		if !schemaEqual(first.Schema, other.Schema) {
			return nil, &dqerr.StateMerging{Message: "schema mismatch across merged states"}
		}
	}
	return first, nil
}

func schemaEqual(a, b property.Schema) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
