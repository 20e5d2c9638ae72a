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
	"context"
	"fmt"

	"github.com/dqcore/dqengine/dqerr"
	"github.com/dqcore/dqengine/property"
	"github.com/dqcore/dqengine/sqlexec"
	"github.com/dqcore/dqengine/state"
)

// FrequencyCountColumn is the fixed name of the per-group row-count
// column in a materialized frequency table, shared across all
// grouping-family operators so they can be merged into the planner's
// single GROUP BY pass per set of grouping columns.
const FrequencyCountColumn = "cnt"

type uniquenessOp struct{ p property.Uniqueness }

func (o uniquenessOp) Property() property.Property  { return o.p }
func (o uniquenessOp) GroupingColumns() []string     { return o.p.Columns }

func (o uniquenessOp) ExtractState(ctx context.Context, exec sqlexec.Executor, freq state.FrequenciesAndNumRows) (state.State, error) {
	q := fmt.Sprintf(
		"SELECT SUM(CASE WHEN %s = 1 THEN 1 ELSE 0 END) AS num_unique FROM %s",
		FrequencyCountColumn, freq.Table,
	)
	row, err := exec.QueryRow(ctx, freq.Table, q)
	if err != nil {
		return nil, err
	}
	numUnique, ok := asInt64(row["num_unique"])
	if !ok {
		return nil, &dqerr.StateHandlerUnsupportedState{StateType: "Uniqueness", Cause: fmt.Errorf("non-integer aggregation result")}
	}
	return state.NewNumMatchesAndCount(o.p.Key().Identifier(), numUnique, freq.NumRows), nil
}

type distinctnessOp struct{ p property.Distinctness }

func (o distinctnessOp) Property() property.Property { return o.p }
func (o distinctnessOp) GroupingColumns() []string    { return o.p.Columns }

func (o distinctnessOp) ExtractState(ctx context.Context, exec sqlexec.Executor, freq state.FrequenciesAndNumRows) (state.State, error) {
	q := fmt.Sprintf("SELECT COUNT(*) AS num_groups FROM %s", freq.Table)
	row, err := exec.QueryRow(ctx, freq.Table, q)
	if err != nil {
		return nil, err
	}
	numGroups, ok := asInt64(row["num_groups"])
	if !ok {
		return nil, &dqerr.StateHandlerUnsupportedState{StateType: "Distinctness", Cause: fmt.Errorf("non-integer aggregation result")}
	}
	return state.NewNumMatchesAndCount(o.p.Key().Identifier(), numGroups, freq.NumRows), nil
}

type uniqueValueRatioOp struct{ p property.UniqueValueRatio }

func (o uniqueValueRatioOp) Property() property.Property { return o.p }
func (o uniqueValueRatioOp) GroupingColumns() []string    { return o.p.Columns }

func (o uniqueValueRatioOp) ExtractState(ctx context.Context, exec sqlexec.Executor, freq state.FrequenciesAndNumRows) (state.State, error) {
	q := fmt.Sprintf(
		"SELECT SUM(CASE WHEN %s = 1 THEN 1 ELSE 0 END) AS num_unique, COUNT(*) AS num_groups FROM %s",
		FrequencyCountColumn, freq.Table,
	)
	row, err := exec.QueryRow(ctx, freq.Table, q)
	if err != nil {
		return nil, err
	}
	numUnique, ok1 := asInt64(row["num_unique"])
	numGroups, ok2 := asInt64(row["num_groups"])
	if !ok1 || !ok2 {
		return nil, &dqerr.StateHandlerUnsupportedState{StateType: "UniqueValueRatio", Cause: fmt.Errorf("non-integer aggregation result")}
	}
	return state.NewNumMatchesAndCount(o.p.Key().Identifier(), numUnique, numGroups), nil
}
