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

import "github.com/dqcore/dqengine/property"

// Table is one in-memory relation: an ordered column/type schema plus
// its rows, keyed by column name the way sqlexec.Row is.
type Table struct {
	Name    string
	Schema  property.Schema
	Rows    []map[string]any
}

// NewTable constructs a Table from a schema and row data.
func NewTable(name string, schema property.Schema, rows []map[string]any) *Table {
	return &Table{Name: name, Schema: schema, Rows: rows}
}
