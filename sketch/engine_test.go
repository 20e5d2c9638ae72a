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
	"testing"

	"github.com/dqcore/dqengine/state"
)

func TestEncodeDecodeBytesRoundTrip(t *testing.T) {
	s := NewKLL(50)
	for i := 0; i < 200; i++ {
		s.Update(float64(i))
	}
	encoded, err := encodeBytes(s.marshalBinary())
	if err != nil {
		t.Fatalf("encodeBytes: %v", err)
	}
	raw, err := decodeBytes(encoded)
	if err != nil {
		t.Fatalf("decodeBytes: %v", err)
	}
	back, err := unmarshalKLL(raw)
	if err != nil {
		t.Fatalf("unmarshalKLL: %v", err)
	}
	want, _ := s.Quantile(0.5)
	got, _ := back.Quantile(0.5)
	if want != got {
		t.Errorf("round-tripped median = %v, want %v", got, want)
	}
}

func TestEngineBuildAndQueryQuantile(t *testing.T) {
	eng := NewEngine(200, 14)
	values := make([]float64, 1000)
	for i := range values {
		values[i] = float64(i + 1)
	}
	st, err := eng.BuildQuantileState(42, values, 0.5)
	if err != nil {
		t.Fatalf("BuildQuantileState: %v", err)
	}
	if st.PropertyID() != 42 {
		t.Errorf("PropertyID = %d, want 42", st.PropertyID())
	}
	q, err := eng.Quantile(st)
	if err != nil {
		t.Fatalf("Quantile: %v", err)
	}
	if q < 450 || q > 550 {
		t.Errorf("median = %v, want within [450,550]", q)
	}
}

func TestEngineBuildAndQueryApproxDistinct(t *testing.T) {
	eng := NewEngine(200, 14)
	values := make([]string, 10000)
	for i := range values {
		values[i] = fmt.Sprintf("v-%d", i)
	}
	st, err := eng.BuildApproxDistinctState(7, values)
	if err != nil {
		t.Fatalf("BuildApproxDistinctState: %v", err)
	}
	ratio := ApproxDistinctRatio(st)
	if ratio < 0.9 || ratio > 1.0 {
		t.Errorf("ratio = %v, want within [0.9,1.0] for all-distinct input", ratio)
	}
}

func TestApproxDistinctRatioZeroRows(t *testing.T) {
	st, err := NewEngine(200, 14).BuildApproxDistinctState(1, nil)
	if err != nil {
		t.Fatalf("BuildApproxDistinctState: %v", err)
	}
	if got := ApproxDistinctRatio(st); got != 0 {
		t.Errorf("ratio over zero rows = %v, want 0", got)
	}
}

func TestEngineMergeQuantile(t *testing.T) {
	eng := NewEngine(200, 14)
	a, err := eng.BuildQuantileState(1, []float64{1, 2, 3, 4, 5}, 1.0)
	if err != nil {
		t.Fatalf("BuildQuantileState a: %v", err)
	}
	b, err := eng.BuildQuantileState(1, []float64{6, 7, 8, 9, 10}, 1.0)
	if err != nil {
		t.Fatalf("BuildQuantileState b: %v", err)
	}
	merged, err := eng.MergeQuantile([]state.QuantileState{a, b})
	if err != nil {
		t.Fatalf("MergeQuantile: %v", err)
	}
	q, err := eng.Quantile(merged)
	if err != nil {
		t.Fatalf("Quantile: %v", err)
	}
	if q != 10 {
		t.Errorf("merged max = %v, want 10", q)
	}
}

func TestEngineMergeApproxDistinctSumsRowCounts(t *testing.T) {
	eng := NewEngine(200, 14)
	a, err := eng.BuildApproxDistinctState(1, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BuildApproxDistinctState a: %v", err)
	}
	b, err := eng.BuildApproxDistinctState(1, []string{"d", "e"})
	if err != nil {
		t.Fatalf("BuildApproxDistinctState b: %v", err)
	}
	merged, err := eng.MergeApproxDistinct([]state.ApproxDistinctState{a, b})
	if err != nil {
		t.Fatalf("MergeApproxDistinct: %v", err)
	}
	if merged.NumRows != 5 {
		t.Errorf("NumRows = %d, want 5", merged.NumRows)
	}
}
