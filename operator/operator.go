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

// Package operator compiles a property.Property into the SQL fragments
// needed to measure it, and extracts a state.State back out of the
// executor's results. Concrete operators are grounded on the
// aggregation table in original_source/.../sql_operators.py; the
// planner is the only caller of Compile.
package operator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dchest/siphash"
	"github.com/dqcore/dqengine/dqerr"
	"github.com/dqcore/dqengine/property"
	"github.com/dqcore/dqengine/sqlexec"
	"github.com/dqcore/dqengine/state"
)

// siphash key is fixed and arbitrary: aliases only need to be stable
// and collision-free within one process run, never cross-version
// stable, so there is no key-rotation concern.
var aliasKey0, aliasKey1 uint64 = 0x646471636f726500, 0x616c696173000000

// Alias returns the short, SQL-safe, collision-resistant column alias
// an operator uses to tag its aggregation expressions, derived from the
// property's identifier by running it through siphash rather than
// reusing Identifier() directly (keeps alias and persisted property_id
// generation independent, per spec.md's Design Notes).
func Alias(p property.Property) string {
	id := p.Key().Identifier()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(id >> (8 * i))
	}
	h := siphash.Hash(aliasKey0, aliasKey1, buf[:])
	return "m_" + strconv.FormatUint(h, 36)
}

// Operator is the common handle every compiled property carries.
type Operator interface {
	Property() property.Property
}

// ScanShareable operators contribute self-aliased aggregate expressions
// to a single dataset-wide scan pass (no GROUP BY); many ScanShareable
// operators combine into one SELECT, which is the aggregation-sharing
// spec.md's planner is built around.
type ScanShareable interface {
	Operator
	// Aggregations returns the "EXPR AS alias" fragments this operator
	// needs from the shared scan.
	Aggregations() []string
	// ExtractState pulls this operator's State out of the single row
	// the shared scan produced.
	ExtractState(row sqlexec.Row) (state.State, error)
}

// GroupingShareable operators need a GROUP BY pass over one or more
// columns; operators that agree on the same grouping columns share one
// materialized frequency table (column, ..., cnt).
type GroupingShareable interface {
	Operator
	GroupingColumns() []string
	// ExtractState runs a small follow-up aggregate query against the
	// materialized frequency table and derives this operator's State.
	ExtractState(ctx context.Context, exec sqlexec.Executor, freq state.FrequenciesAndNumRows) (state.State, error)
}

// SketchOperator operators are computed by streaming Column's raw
// values through a sketch (KLL/HLL) rather than a SQL aggregate; the
// planner routes these to package sketch instead of a scan pass.
type SketchOperator interface {
	Operator
	Column() string
	// Quantile reports the quantile to answer and true for a Quantile
	// operator, or (0, false) for an ApproxDistinctness operator.
	Quantile() (float64, bool)
}

// Compile dispatches p to its concrete operator. Properties declared in
// the catalog but never backed by a working operator in the reference
// engine (Correlation, Entropy, Histogram, KllSketchProperty) report
// dqerr.UnsupportedProperty, matching that engine's own behavior.
func Compile(p property.Property) (Operator, error) {
	switch v := p.(type) {
	case property.Size:
		return sizeOp{p: v}, nil
	case property.Completeness:
		return completenessOp{p: v}, nil
	case property.Minimum:
		return minimumOp{p: v}, nil
	case property.Maximum:
		return maximumOp{p: v}, nil
	case property.Mean:
		return meanOp{p: v}, nil
	case property.Sum:
		return sumOp{p: v}, nil
	case property.StandardDeviation:
		return stddevOp{p: v}, nil
	case property.MinLength:
		return minLengthOp{p: v}, nil
	case property.MaxLength:
		return maxLengthOp{p: v}, nil
	case property.Compliance:
		return complianceOp{p: v}, nil
	case property.PatternMatch:
		return patternMatchOp{p: v}, nil
	case property.Uniqueness:
		return uniquenessOp{p: v}, nil
	case property.Distinctness:
		return distinctnessOp{p: v}, nil
	case property.UniqueValueRatio:
		return uniqueValueRatioOp{p: v}, nil
	case property.Quantile:
		return quantileOp{p: v}, nil
	case property.ApproxDistinctness:
		return approxDistinctOp{p: v}, nil
	default:
		return nil, &dqerr.UnsupportedProperty{Kind: fmt.Sprintf("%T", p)}
	}
}

// filteredExpr wraps expr so it evaluates to NULL on rows where the
// where predicate does not hold, letting COUNT/MIN/MAX/SUM ignore
// excluded rows without a second CASE at the caller.
func filteredExpr(where string, hasWhere bool, expr string) string {
	if !hasWhere {
		return expr
	}
	return fmt.Sprintf("CASE WHEN (%s) THEN %s ELSE NULL END", where, expr)
}

// countExpr returns the row-count expression honoring an optional filter.
func countExpr(where string, hasWhere bool) string {
	if !hasWhere {
		return "COUNT(*)"
	}
	return fmt.Sprintf("SUM(CASE WHEN (%s) THEN 1 ELSE 0 END)", where)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case nil:
		return 0, true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case nil:
		return 0, true
	default:
		return 0, false
	}
}
