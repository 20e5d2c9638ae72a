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

package sketch

import (
	"fmt"

	"github.com/dqcore/dqengine/state"
)

// Engine builds, serializes, merges and queries sketch-backed states on
// behalf of the planner. It implements
// state.SketchMerger so package state can fold sketch states into its
// merge algebra without importing this package.
type Engine struct {
	K            int
	HLLPrecision uint8
}

// NewEngine constructs an Engine. k<=0 and precision==0 fall back to
// the sketch package's defaults.
func NewEngine(k int, hllPrecision uint8) *Engine {
	return &Engine{K: k, HLLPrecision: hllPrecision}
}

// BuildQuantileState streams values through a fresh KLL sketch and
// serializes the result into a state.QuantileState for property id pid.
func (e *Engine) BuildQuantileState(pid uint64, values []float64, q float64) (state.QuantileState, error) {
	s := NewKLL(e.K)
	for _, v := range values {
		s.Update(v)
	}
	encoded, err := encodeBytes(s.marshalBinary())
	if err != nil {
		return state.QuantileState{}, err
	}
	return state.NewQuantileState(pid, encoded, q, "floats"), nil
}

// BuildApproxDistinctState streams raw textual column values through a
// fresh HLL sketch and serializes the result for property id pid.
func (e *Engine) BuildApproxDistinctState(pid uint64, values []string) (state.ApproxDistinctState, error) {
	s := NewHLL(e.HLLPrecision)
	for _, v := range values {
		s.Add(v)
	}
	encoded, err := encodeBytes(s.marshalBinary())
	if err != nil {
		return state.ApproxDistinctState{}, err
	}
	return state.NewApproxDistinctState(pid, encoded, s.Estimate(), int64(len(values))), nil
}

// MergeQuantile deserializes every state's KLL sketch, folds them into
// one, and re-serializes the result.
func (e *Engine) MergeQuantile(states []state.QuantileState) (state.QuantileState, error) {
	if len(states) == 0 {
		return state.QuantileState{}, fmt.Errorf("sketch: cannot merge zero QuantileStates")
	}
	var acc *KLL
	for _, st := range states {
		raw, err := decodeBytes(st.SketchBytes)
		if err != nil {
			return state.QuantileState{}, err
		}
		s, err := unmarshalKLL(raw)
		if err != nil {
			return state.QuantileState{}, err
		}
		if acc == nil {
			acc = s
		} else {
			acc.Merge(s)
		}
	}
	encoded, err := encodeBytes(acc.marshalBinary())
	if err != nil {
		return state.QuantileState{}, err
	}
	first := states[0]
	return state.NewQuantileState(first.PropertyID(), encoded, first.Q, first.SketchType), nil
}

// MergeApproxDistinct deserializes every state's HLL sketch, folds them
// into one, and re-serializes the result alongside the combined row count.
func (e *Engine) MergeApproxDistinct(states []state.ApproxDistinctState) (state.ApproxDistinctState, error) {
	if len(states) == 0 {
		return state.ApproxDistinctState{}, fmt.Errorf("sketch: cannot merge zero ApproxDistinctStates")
	}
	var acc *HLL
	var numRows int64
	for _, st := range states {
		raw, err := decodeBytes(st.SketchBytes)
		if err != nil {
			return state.ApproxDistinctState{}, err
		}
		s, err := unmarshalHLL(raw)
		if err != nil {
			return state.ApproxDistinctState{}, err
		}
		numRows += st.NumRows
		if acc == nil {
			acc = s
		} else if err := acc.Merge(s); err != nil {
			return state.ApproxDistinctState{}, err
		}
	}
	encoded, err := encodeBytes(acc.marshalBinary())
	if err != nil {
		return state.ApproxDistinctState{}, err
	}
	return state.NewApproxDistinctState(states[0].PropertyID(), encoded, acc.Estimate(), numRows), nil
}

// Quantile re-deserializes s's sketch and answers its configured quantile.
func (e *Engine) Quantile(s state.QuantileState) (float64, error) {
	raw, err := decodeBytes(s.SketchBytes)
	if err != nil {
		return 0, err
	}
	kll, err := unmarshalKLL(raw)
	if err != nil {
		return 0, err
	}
	return kll.Quantile(s.Q)
}

// ApproxDistinctRatio returns min(estimate/num_rows, 1.0), the value
// ApproxDistinctness reports as its metric.
func ApproxDistinctRatio(s state.ApproxDistinctState) float64 {
	if s.NumRows == 0 {
		return 0
	}
	ratio := s.Estimate / float64(s.NumRows)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}
