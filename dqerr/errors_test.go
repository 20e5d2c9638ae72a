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

package dqerr

import (
	"errors"
	"testing"
)

func TestPreconditionNotMet(t *testing.T) {
	e := &PreconditionNotMet{Message: "column missing"}
	if e.Error() != "column missing" {
		t.Errorf("Error() = %q, want %q", e.Error(), "column missing")
	}
}

func TestUnsupportedProperty(t *testing.T) {
	e := &UnsupportedProperty{Kind: "Correlation"}
	want := `property "Correlation" not supported by this engine`
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestUnknownOperatorType(t *testing.T) {
	e := &UnknownOperatorType{TypeName: "weirdOp"}
	want := `operator "weirdOp" is neither a scan nor a grouping operator`
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestUnsupportedConnectionObject(t *testing.T) {
	e := &UnsupportedConnectionObject{Detail: "*os.File"}
	want := "unsupported connection object: *os.File"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestStateHandlerUnsupportedStateWithCause(t *testing.T) {
	cause := errors.New("bad json")
	e := &StateHandlerUnsupportedState{StateType: "QuantileState", Cause: cause}
	want := `state type "QuantileState" not supported: bad json`
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
	if !errors.Is(e, cause) {
		t.Errorf("errors.Is did not unwrap to the cause")
	}
}

func TestStateHandlerUnsupportedStateNoCause(t *testing.T) {
	e := &StateHandlerUnsupportedState{StateType: "QuantileState"}
	want := `state type "QuantileState" not supported`
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestEmptyResultSet(t *testing.T) {
	e := &EmptyResultSet{Property: "Maximum(amount)"}
	want := "no rows available to evaluate Maximum(amount)"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestStateMerging(t *testing.T) {
	e := &StateMerging{Message: "schema mismatch across merged states"}
	if e.Error() != "schema mismatch across merged states" {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestConstraintAssertion(t *testing.T) {
	cause := errors.New("boom")
	e := &ConstraintAssertion{Cause: cause}
	want := "can't execute the assertion: boom"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
	if !errors.Is(e, cause) {
		t.Errorf("errors.Is did not unwrap to the cause")
	}
}

func TestDataQuality(t *testing.T) {
	e := &DataQuality{FailedChecks: []string{"a", "b", "c"}}
	want := "data quality verification failed for 3 check(s)"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}
