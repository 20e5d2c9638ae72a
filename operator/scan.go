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

package operator

import (
	"fmt"
	"math"

	"github.com/dqcore/dqengine/dqerr"
	"github.com/dqcore/dqengine/property"
	"github.com/dqcore/dqengine/sqlexec"
	"github.com/dqcore/dqengine/state"
)

type sizeOp struct{ p property.Size }

func (o sizeOp) Property() property.Property { return o.p }

func (o sizeOp) Aggregations() []string {
	where, hasWhere := o.p.Where()
	return []string{countExpr(where, hasWhere) + " AS " + Alias(o.p)}
}

func (o sizeOp) ExtractState(row sqlexec.Row) (state.State, error) {
	n, ok := asInt64(row[Alias(o.p)])
	if !ok {
		return nil, &dqerr.StateHandlerUnsupportedState{StateType: "Size", Cause: fmt.Errorf("non-integer row count")}
	}
	return state.NewNumMatches(o.p.Key().Identifier(), n), nil
}

type completenessOp struct{ p property.Completeness }

func (o completenessOp) Property() property.Property { return o.p }

func (o completenessOp) Aggregations() []string {
	where, hasWhere := o.p.Where()
	alias := Alias(o.p)
	matches := fmt.Sprintf("COUNT(%s) AS %s_m", filteredExpr(where, hasWhere, o.p.Column), alias)
	count := fmt.Sprintf("%s AS %s_c", countExpr(where, hasWhere), alias)
	return []string{matches, count}
}

func (o completenessOp) ExtractState(row sqlexec.Row) (state.State, error) {
	alias := Alias(o.p)
	matches, ok1 := asInt64(row[alias+"_m"])
	count, ok2 := asInt64(row[alias+"_c"])
	if !ok1 || !ok2 {
		return nil, &dqerr.StateHandlerUnsupportedState{StateType: "Completeness", Cause: fmt.Errorf("non-integer aggregation result")}
	}
	return state.NewNumMatchesAndCount(o.p.Key().Identifier(), matches, count), nil
}

type minimumOp struct{ p property.Minimum }

func (o minimumOp) Property() property.Property { return o.p }

func (o minimumOp) Aggregations() []string {
	where, hasWhere := o.p.Where()
	expr := fmt.Sprintf("MIN(%s) AS %s", filteredExpr(where, hasWhere, o.p.Column), Alias(o.p))
	return []string{expr}
}

func (o minimumOp) ExtractState(row sqlexec.Row) (state.State, error) {
	if row[Alias(o.p)] == nil {
		return nil, &dqerr.EmptyResultSet{Property: o.p.String()}
	}
	v, ok := asFloat64(row[Alias(o.p)])
	if !ok {
		return nil, &dqerr.StateHandlerUnsupportedState{StateType: "Minimum", Cause: fmt.Errorf("non-numeric aggregation result")}
	}
	return state.NewMinState(o.p.Key().Identifier(), v), nil
}

type maximumOp struct{ p property.Maximum }

func (o maximumOp) Property() property.Property { return o.p }

func (o maximumOp) Aggregations() []string {
	where, hasWhere := o.p.Where()
	expr := fmt.Sprintf("MAX(%s) AS %s", filteredExpr(where, hasWhere, o.p.Column), Alias(o.p))
	return []string{expr}
}

func (o maximumOp) ExtractState(row sqlexec.Row) (state.State, error) {
	if row[Alias(o.p)] == nil {
		return nil, &dqerr.EmptyResultSet{Property: o.p.String()}
	}
	v, ok := asFloat64(row[Alias(o.p)])
	if !ok {
		return nil, &dqerr.StateHandlerUnsupportedState{StateType: "Maximum", Cause: fmt.Errorf("non-numeric aggregation result")}
	}
	return state.NewMaxState(o.p.Key().Identifier(), v), nil
}

type meanOp struct{ p property.Mean }

func (o meanOp) Property() property.Property { return o.p }

func (o meanOp) Aggregations() []string {
	where, hasWhere := o.p.Where()
	alias := Alias(o.p)
	sum := fmt.Sprintf("SUM(%s) AS %s_sum", filteredExpr(where, hasWhere, o.p.Column), alias)
	cnt := fmt.Sprintf("COUNT(%s) AS %s_cnt", filteredExpr(where, hasWhere, o.p.Column), alias)
	return []string{sum, cnt}
}

func (o meanOp) ExtractState(row sqlexec.Row) (state.State, error) {
	alias := Alias(o.p)
	sum, ok1 := asFloat64(row[alias+"_sum"])
	cnt, ok2 := asInt64(row[alias+"_cnt"])
	if !ok1 || !ok2 {
		return nil, &dqerr.StateHandlerUnsupportedState{StateType: "Mean", Cause: fmt.Errorf("non-numeric aggregation result")}
	}
	if cnt == 0 {
		return nil, &dqerr.EmptyResultSet{Property: o.p.String()}
	}
	return state.NewMeanState(o.p.Key().Identifier(), sum, cnt), nil
}

type sumOp struct{ p property.Sum }

func (o sumOp) Property() property.Property { return o.p }

func (o sumOp) Aggregations() []string {
	where, hasWhere := o.p.Where()
	expr := fmt.Sprintf("SUM(%s) AS %s", filteredExpr(where, hasWhere, o.p.Column), Alias(o.p))
	return []string{expr}
}

func (o sumOp) ExtractState(row sqlexec.Row) (state.State, error) {
	if row[Alias(o.p)] == nil {
		return nil, &dqerr.EmptyResultSet{Property: o.p.String()}
	}
	v, ok := asFloat64(row[Alias(o.p)])
	if !ok {
		return nil, &dqerr.StateHandlerUnsupportedState{StateType: "Sum", Cause: fmt.Errorf("non-numeric aggregation result")}
	}
	return state.NewSumState(o.p.Key().Identifier(), v), nil
}

// stddevOp uses the one-pass computational formula (sum, sum-of-squares,
// count) so the sample variance can be derived without a second scan;
// the Chan-Welford combination in package state then merges these
// across partitions.
type stddevOp struct{ p property.StandardDeviation }

func (o stddevOp) Property() property.Property { return o.p }

func (o stddevOp) Aggregations() []string {
	where, hasWhere := o.p.Where()
	alias := Alias(o.p)
	col := filteredExpr(where, hasWhere, o.p.Column)
	sq := filteredExpr(where, hasWhere, fmt.Sprintf("(%s * %s)", o.p.Column, o.p.Column))
	return []string{
		fmt.Sprintf("SUM(%s) AS %s_sum", col, alias),
		fmt.Sprintf("SUM(%s) AS %s_sumsq", sq, alias),
		fmt.Sprintf("COUNT(%s) AS %s_cnt", col, alias),
	}
}

func (o stddevOp) ExtractState(row sqlexec.Row) (state.State, error) {
	alias := Alias(o.p)
	sum, ok1 := asFloat64(row[alias+"_sum"])
	sumsq, ok2 := asFloat64(row[alias+"_sumsq"])
	cnt, ok3 := asInt64(row[alias+"_cnt"])
	if !ok1 || !ok2 || !ok3 {
		return nil, &dqerr.StateHandlerUnsupportedState{StateType: "StandardDeviation", Cause: fmt.Errorf("non-numeric aggregation result")}
	}
	if cnt == 0 {
		return state.NewStandardDeviationState(o.p.Key().Identifier(), 0, 0, 0, 0), nil
	}
	n := float64(cnt)
	avg := sum / n
	m2 := sumsq - sum*sum/n
	if m2 < 0 {
		m2 = 0
	}
	stddev := 0.0
	if n > 1 {
		stddev = math.Sqrt(m2 / (n - 1))
	}
	return state.NewStandardDeviationState(o.p.Key().Identifier(), n, avg, m2, stddev), nil
}

type minLengthOp struct{ p property.MinLength }

func (o minLengthOp) Property() property.Property { return o.p }

func (o minLengthOp) Aggregations() []string {
	where, hasWhere := o.p.Where()
	expr := fmt.Sprintf("MIN(LENGTH(%s)) AS %s", filteredExpr(where, hasWhere, o.p.Column), Alias(o.p))
	return []string{expr}
}

func (o minLengthOp) ExtractState(row sqlexec.Row) (state.State, error) {
	if row[Alias(o.p)] == nil {
		return nil, &dqerr.EmptyResultSet{Property: o.p.String()}
	}
	v, ok := asFloat64(row[Alias(o.p)])
	if !ok {
		return nil, &dqerr.StateHandlerUnsupportedState{StateType: "MinLength", Cause: fmt.Errorf("non-numeric aggregation result")}
	}
	return state.NewMinState(o.p.Key().Identifier(), v), nil
}

type maxLengthOp struct{ p property.MaxLength }

func (o maxLengthOp) Property() property.Property { return o.p }

func (o maxLengthOp) Aggregations() []string {
	where, hasWhere := o.p.Where()
	expr := fmt.Sprintf("MAX(LENGTH(%s)) AS %s", filteredExpr(where, hasWhere, o.p.Column), Alias(o.p))
	return []string{expr}
}

func (o maxLengthOp) ExtractState(row sqlexec.Row) (state.State, error) {
	if row[Alias(o.p)] == nil {
		return nil, &dqerr.EmptyResultSet{Property: o.p.String()}
	}
	v, ok := asFloat64(row[Alias(o.p)])
	if !ok {
		return nil, &dqerr.StateHandlerUnsupportedState{StateType: "MaxLength", Cause: fmt.Errorf("non-numeric aggregation result")}
	}
	return state.NewMaxState(o.p.Key().Identifier(), v), nil
}

type complianceOp struct{ p property.Compliance }

func (o complianceOp) Property() property.Property { return o.p }

func (o complianceOp) Aggregations() []string {
	where, hasWhere := o.p.Where()
	alias := Alias(o.p)
	cond := o.p.Expression
	if hasWhere {
		cond = fmt.Sprintf("(%s) AND (%s)", where, cond)
	}
	matches := fmt.Sprintf("SUM(CASE WHEN %s THEN 1 ELSE 0 END) AS %s_m", cond, alias)
	count := fmt.Sprintf("%s AS %s_c", countExpr(where, hasWhere), alias)
	return []string{matches, count}
}

func (o complianceOp) ExtractState(row sqlexec.Row) (state.State, error) {
	alias := Alias(o.p)
	matches, ok1 := asInt64(row[alias+"_m"])
	count, ok2 := asInt64(row[alias+"_c"])
	if !ok1 || !ok2 {
		return nil, &dqerr.StateHandlerUnsupportedState{StateType: "Compliance", Cause: fmt.Errorf("non-integer aggregation result")}
	}
	return state.NewNumMatchesAndCount(o.p.Key().Identifier(), matches, count), nil
}

type patternMatchOp struct{ p property.PatternMatch }

func (o patternMatchOp) Property() property.Property { return o.p }

func (o patternMatchOp) Aggregations() []string {
	where, hasWhere := o.p.Where()
	alias := Alias(o.p)
	cond := fmt.Sprintf("regexp_full_match(%s, '%s')", o.p.Column, o.p.Pattern)
	if hasWhere {
		cond = fmt.Sprintf("(%s) AND %s", where, cond)
	}
	matches := fmt.Sprintf("SUM(CASE WHEN %s THEN 1 ELSE 0 END) AS %s_m", cond, alias)
	count := fmt.Sprintf("%s AS %s_c", countExpr(where, hasWhere), alias)
	return []string{matches, count}
}

func (o patternMatchOp) ExtractState(row sqlexec.Row) (state.State, error) {
	alias := Alias(o.p)
	matches, ok1 := asInt64(row[alias+"_m"])
	count, ok2 := asInt64(row[alias+"_c"])
	if !ok1 || !ok2 {
		return nil, &dqerr.StateHandlerUnsupportedState{StateType: "PatternMatch", Cause: fmt.Errorf("non-integer aggregation result")}
	}
	return state.NewNumMatchesAndCount(o.p.Key().Identifier(), matches, count), nil
}
