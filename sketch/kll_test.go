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

import "testing"

func TestKLLEmptyQuantileErrors(t *testing.T) {
	s := NewKLL(0)
	if _, err := s.Quantile(0.5); err == nil {
		t.Fatalf("expected an error querying an empty sketch")
	}
}

func TestKLLMedianWithinTolerance(t *testing.T) {
	s := NewKLL(200)
	for i := 1; i <= 1000; i++ {
		s.Update(float64(i))
	}
	got, err := s.Quantile(0.5)
	if err != nil {
		t.Fatalf("Quantile: %v", err)
	}
	if got < 450 || got > 550 {
		t.Errorf("median estimate %v outside expected band [450,550]", got)
	}
}

func TestKLLMergeCombinesRanges(t *testing.T) {
	a := NewKLL(200)
	for i := 1; i <= 500; i++ {
		a.Update(float64(i))
	}
	b := NewKLL(200)
	for i := 501; i <= 1000; i++ {
		b.Update(float64(i))
	}
	a.Merge(b)
	got, err := a.Quantile(1.0)
	if err != nil {
		t.Fatalf("Quantile: %v", err)
	}
	if got < 950 {
		t.Errorf("merged max estimate = %v, want close to 1000", got)
	}
}

func TestKLLRoundTripBinary(t *testing.T) {
	s := NewKLL(64)
	for i := 0; i < 5000; i++ {
		s.Update(float64(i % 997))
	}
	buf := s.marshalBinary()
	back, err := unmarshalKLL(buf)
	if err != nil {
		t.Fatalf("unmarshalKLL: %v", err)
	}
	want, err := s.Quantile(0.9)
	if err != nil {
		t.Fatalf("Quantile: %v", err)
	}
	got, err := back.Quantile(0.9)
	if err != nil {
		t.Fatalf("Quantile (round-tripped): %v", err)
	}
	if want != got {
		t.Errorf("round-tripped sketch quantile = %v, want %v", got, want)
	}
}
