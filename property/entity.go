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

// Package property holds the typed descriptors of measurable
// quantities (Size, Completeness, Minimum, PatternMatch, Quantile, ...)
// that checks are built on top of.
package property

// Entity classifies what a Property is measured over.
type Entity int

const (
	Dataset Entity = iota
	Column
	TwoColumn
	MultiColumn
)

func (e Entity) String() string {
	switch e {
	case Dataset:
		return "Dataset"
	case Column:
		return "Column"
	case TwoColumn:
		return "TwoColumn"
	case MultiColumn:
		return "MultiColumn"
	default:
		return "Unknown"
	}
}

// MetricType is the shape of the value a Property's metric carries.
type MetricType int

const (
	DoubleMetricType MetricType = iota
	SchemaMetricType
)

func (m MetricType) String() string {
	if m == SchemaMetricType {
		return "SchemaMetric"
	}
	return "DoubleMetric"
}
