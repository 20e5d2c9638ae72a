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

package memtable

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dqcore/dqengine/property"
	"github.com/dqcore/dqengine/sqlexec"
)

// Store is a process-local registry of in-memory Tables and the
// sqlexec.Executor implementation the planner drives against them. It
// understands only the fragment of SQL package operator and package
// planner emit; it is not a general-purpose SQL engine.
type Store struct {
	mu     sync.Mutex
	tables map[string]*Table
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{tables: make(map[string]*Table)}
}

// AddTable registers t, making it queryable by name.
func (s *Store) AddTable(t *Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.Name] = t
}

func (s *Store) table(name string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("memtable: no such table %q", name)
	}
	return t, nil
}

// Identity returns s itself: two executors share a connection iff they
// are the same *Store.
func (s *Store) Identity() any { return s }

// QueryRow evaluates query (a single aggregate SELECT with no GROUP BY)
// against the named table and returns its one result row.
func (s *Store) QueryRow(ctx context.Context, tableName, query string) (sqlexec.Row, error) {
	stmt, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	t, err := s.table(stmt.from)
	if err != nil {
		return nil, err
	}
	return evalAggregateRow(stmt, t.Rows)
}

// QueryRows evaluates query and returns every row it produces: a plain
// projection, or one row per group when query has a GROUP BY.
func (s *Store) QueryRows(ctx context.Context, query string) ([]sqlexec.Row, error) {
	stmt, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	t, err := s.table(stmt.from)
	if err != nil {
		return nil, err
	}
	if len(stmt.groupBy) > 0 {
		return evalGroupedRows(stmt, t.Rows)
	}
	if hasAggregate(stmt) {
		row, err := evalAggregateRow(stmt, t.Rows)
		if err != nil {
			return nil, err
		}
		return []sqlexec.Row{row}, nil
	}
	out := make([]sqlexec.Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		projected := make(sqlexec.Row, len(stmt.items))
		for _, item := range stmt.items {
			v, err := item.arg.eval(r)
			if err != nil {
				return nil, err
			}
			projected[item.alias] = v
		}
		out = append(out, projected)
	}
	return out, nil
}

// CreateTableAs evaluates query (expected to be a GROUP BY aggregation
// over an existing table) and registers its result as a new table named
// tableName, returning that name.
func (s *Store) CreateTableAs(ctx context.Context, tableName, query string, temp bool) (string, error) {
	stmt, err := parseSelect(query)
	if err != nil {
		return "", err
	}
	src, err := s.table(stmt.from)
	if err != nil {
		return "", err
	}
	rows, err := evalGroupedRows(stmt, src.Rows)
	if err != nil {
		return "", err
	}
	schema := make(property.Schema, 0, len(stmt.items))
	for _, item := range stmt.items {
		typ := "BIGINT"
		if item.agg == "" {
			typ = "VARCHAR"
		}
		schema = append(schema, property.ColumnType{Name: item.alias, Type: typ})
	}
	plain := make([]map[string]any, len(rows))
	for i, r := range rows {
		plain[i] = map[string]any(r)
	}
	s.AddTable(NewTable(tableName, schema, plain))
	return tableName, nil
}

// Schema returns the registered column/type mapping for table.
func (s *Store) Schema(ctx context.Context, tableName string) (property.Schema, error) {
	t, err := s.table(tableName)
	if err != nil {
		return nil, err
	}
	return t.Schema, nil
}

func hasAggregate(stmt selectStmt) bool {
	for _, item := range stmt.items {
		if item.agg != "" {
			return true
		}
	}
	return false
}

// evalAggregateRow folds every row in rows through stmt's aggregate
// select list, producing exactly one result row.
func evalAggregateRow(stmt selectStmt, rows []map[string]any) (sqlexec.Row, error) {
	out := make(sqlexec.Row, len(stmt.items))
	for _, item := range stmt.items {
		v, err := aggregate(item, rows)
		if err != nil {
			return nil, err
		}
		out[item.alias] = v
	}
	return out, nil
}

// evalGroupedRows partitions rows by stmt.groupBy and evaluates stmt's
// aggregate select list within each partition.
func evalGroupedRows(stmt selectStmt, rows []map[string]any) ([]sqlexec.Row, error) {
	type group struct {
		key  string
		vals []any
		rows []map[string]any
	}
	order := make([]string, 0)
	groups := make(map[string]*group)
	for _, r := range rows {
		vals := make([]any, len(stmt.groupBy))
		var keyParts []string
		for i, col := range stmt.groupBy {
			vals[i] = r[col]
			keyParts = append(keyParts, fmt.Sprint(r[col]))
		}
		key := strings.Join(keyParts, "\x1f")
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, vals: vals}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, r)
	}
	sort.Strings(order)

	out := make([]sqlexec.Row, 0, len(order))
	for _, key := range order {
		g := groups[key]
		row := make(sqlexec.Row, len(stmt.items))
		for i, col := range stmt.groupBy {
			row[col] = g.vals[i]
		}
		for _, item := range stmt.items {
			if item.agg == "" {
				continue
			}
			v, err := aggregate(item, g.rows)
			if err != nil {
				return nil, err
			}
			row[item.alias] = v
		}
		out = append(out, row)
	}
	return out, nil
}

func aggregate(item selectItem, rows []map[string]any) (any, error) {
	switch item.agg {
	case "COUNT":
		if item.star {
			return int64(len(rows)), nil
		}
		var n int64
		for _, r := range rows {
			v, err := item.arg.eval(r)
			if err != nil {
				return nil, err
			}
			if v != nil {
				n++
			}
		}
		return n, nil
	case "SUM":
		var sum float64
		var seen bool
		for _, r := range rows {
			v, err := item.arg.eval(r)
			if err != nil {
				return nil, err
			}
			if v != nil {
				sum += toFloat(v)
				seen = true
			}
		}
		if !seen {
			return nil, nil
		}
		return sum, nil
	case "MIN", "MAX":
		var best float64
		found := false
		for _, r := range rows {
			v, err := item.arg.eval(r)
			if err != nil {
				return nil, err
			}
			if v == nil {
				continue
			}
			f := toFloat(v)
			if !found || (item.agg == "MIN" && f < best) || (item.agg == "MAX" && f > best) {
				best = f
				found = true
			}
		}
		if !found {
			return nil, nil
		}
		return best, nil
	default:
		if len(rows) == 0 {
			return nil, nil
		}
		return item.arg.eval(rows[0])
	}
}
