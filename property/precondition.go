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

package property

// Precondition is a requirement on the dataset schema that must hold
// before a Property can be compiled and executed. The set is closed:
// HasColumn, IsNumeric, IsString, AtLeastOne.
type Precondition interface {
	// Check evaluates the precondition against a schema and returns a
	// human-readable failure message, or "" if it holds.
	Check(schema Schema) string
}

// ColumnType is one entry of an ordered column -> SQL type mapping.
// An ordinary Go map would lose column order, which the Schema metric
// (spec: "ordered mapping column->type") must preserve.
type ColumnType struct {
	Name string
	Type string
}

// Schema is the ordered column -> type mapping produced by DDL
// introspection and carried verbatim as a SchemaMetric value.
type Schema []ColumnType

// Lookup returns the SQL type of column and whether it was found.
func (s Schema) Lookup(column string) (string, bool) {
	for _, c := range s {
		if c.Name == column {
			return c.Type, true
		}
	}
	return "", false
}

// NumericTypes lists the SQL type names treated as numeric by
// IsNumeric, following the reference engine's DuckDB type set.
var NumericTypes = map[string]bool{
	"NUMERIC": true, "TINYINT": true, "SMALLINT": true, "INTEGER": true,
	"BIGINT": true, "HUGEINT": true, "FLOAT": true, "DOUBLE": true,
	"REAL": true, "DECIMAL": true,
}

// StringTypes lists the SQL type names treated as string by IsString.
var StringTypes = map[string]bool{
	"VARCHAR": true, "NVARCHAR": true, "CLOB": true, "TEXT": true,
}

type hasColumn struct{ column string }

func (p hasColumn) Check(s Schema) string {
	if _, ok := s.Lookup(p.column); !ok {
		return "Input data does not include column " + p.column
	}
	return ""
}

// HasColumn requires the named column to be present in the schema.
func HasColumn(column string) Precondition { return hasColumn{column} }

type isNumeric struct{ column string }

func (p isNumeric) Check(s Schema) string {
	t, ok := s.Lookup(p.column)
	if !ok || !NumericTypes[t] {
		return "expected column " + p.column + " to be numeric, found " + t + " instead"
	}
	return ""
}

// IsNumeric requires the named column to have a numeric SQL type.
func IsNumeric(column string) Precondition { return isNumeric{column} }

type isString struct{ column string }

func (p isString) Check(s Schema) string {
	t, ok := s.Lookup(p.column)
	if !ok || !StringTypes[t] {
		return "expected column " + p.column + " to be string-typed, found " + t + " instead"
	}
	return ""
}

// IsString requires the named column to have a string SQL type.
func IsString(column string) Precondition { return isString{column} }

type atLeastOne struct{ columns []string }

func (p atLeastOne) Check(Schema) string {
	if len(p.columns) < 1 {
		return "at least one column needs to be specified"
	}
	return ""
}

// AtLeastOne requires columns to be non-empty.
func AtLeastOne(columns []string) Precondition { return atLeastOne{columns} }
