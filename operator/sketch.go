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

import "github.com/dqcore/dqengine/property"

// quantileOp and approxDistinctOp never reach a SQL aggregation: the
// planner type-switches on SketchOperator and routes them to package
// sketch instead, which streams the raw column values through a KLL or
// HyperLogLog sketch.

type quantileOp struct{ p property.Quantile }

func (o quantileOp) Property() property.Property { return o.p }
func (o quantileOp) Column() string              { return o.p.Column }
func (o quantileOp) Quantile() (float64, bool)   { return o.p.Q, true }

type approxDistinctOp struct{ p property.ApproxDistinctness }

func (o approxDistinctOp) Property() property.Property { return o.p }
func (o approxDistinctOp) Column() string               { return o.p.Column }
func (o approxDistinctOp) Quantile() (float64, bool)    { return 0, false }
