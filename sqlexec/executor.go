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

// Package sqlexec declares the contract the planner uses to run SQL
// against a dataset. This is the core's side of the "SQL connection
// pool / URL dispatcher" that spec.md scopes out as an external
// collaborator: the core only ever depends on this interface, never on
// a concrete driver or connection string.
package sqlexec

import (
	"context"

	"github.com/dqcore/dqengine/property"
)

// Row is one result row, keyed by column/alias name. Values are the
// driver-native Go representation (int64, float64, string, bool, nil).
type Row map[string]any

// Executor runs SQL against exactly one dataset table on behalf of the
// planner. Implementations are expected to be exclusive to one run
// (spec.md §5: "the dataset connection is exclusive to one run").
type Executor interface {
	// QueryRow runs a query expected to return exactly one row (an
	// aggregate query without GROUP BY) and returns it.
	QueryRow(ctx context.Context, table, query string) (Row, error)

	// QueryRows runs a query and returns every row it produces, used by
	// the planner to stream a column's raw values into a sketch.
	QueryRows(ctx context.Context, query string) ([]Row, error)

	// CreateTableAs materializes query's result set as a new table
	// (DROP + CREATE [TEMP] TABLE AS), returning the table's name.
	CreateTableAs(ctx context.Context, table, query string, temp bool) (string, error)

	// Schema introspects table's column -> SQL type mapping (the
	// PRAGMA table_info / equivalent DDL introspection of spec.md §6).
	Schema(ctx context.Context, table string) (property.Schema, error)

	// Identity returns a value that is comparable with ==, identifying
	// the underlying connection (compared by identity, never by URL).
	// The planner does not consult it: it always materializes frequency
	// tables as TEMP tables on this executor.
	Identity() any
}
