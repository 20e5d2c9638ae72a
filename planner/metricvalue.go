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

package planner

import (
	"fmt"

	"github.com/dqcore/dqengine/metric"
	"github.com/dqcore/dqengine/operator"
	"github.com/dqcore/dqengine/property"
	"github.com/dqcore/dqengine/sketch"
	"github.com/dqcore/dqengine/sqlexec"
	"github.com/dqcore/dqengine/state"
)

// toMetric derives the double-valued metric a state represents for p.
// eng is only consulted for sketch-backed states; it may be nil for
// every other state variant.
func toMetric(p property.Property, st state.State, eng *sketch.Engine) (metric.Any, error) {
	k := p.Key()
	switch v := st.(type) {
	case state.NumMatches:
		return metric.NewDouble(k.Entity, k.Kind, k.Instance, float64(v.NumMatches)), nil
	case state.NumMatchesAndCount:
		if v.Count == 0 {
			return nil, fmt.Errorf("no rows available to evaluate %s", p.String())
		}
		return metric.NewDouble(k.Entity, k.Kind, k.Instance, float64(v.NumMatches)/float64(v.Count)), nil
	case state.MinState:
		return metric.NewDouble(k.Entity, k.Kind, k.Instance, v.Min), nil
	case state.MaxState:
		return metric.NewDouble(k.Entity, k.Kind, k.Instance, v.Max), nil
	case state.SumState:
		return metric.NewDouble(k.Entity, k.Kind, k.Instance, v.Sum), nil
	case state.MeanState:
		return metric.NewDouble(k.Entity, k.Kind, k.Instance, v.Mean()), nil
	case state.StandardDeviationState:
		return metric.NewDouble(k.Entity, k.Kind, k.Instance, v.StdDev), nil
	case state.QuantileState:
		if eng == nil {
			return nil, fmt.Errorf("no sketch engine configured to answer a quantile")
		}
		q, err := eng.Quantile(v)
		if err != nil {
			return nil, err
		}
		return metric.NewDouble(k.Entity, k.Kind, k.Instance, q), nil
	case state.ApproxDistinctState:
		return metric.NewDouble(k.Entity, k.Kind, k.Instance, sketch.ApproxDistinctRatio(v)), nil
	default:
		return nil, fmt.Errorf("planner: no metric conversion for state %T", st)
	}
}

// buildSketchState streams rows' "v" column through a fresh sketch and
// returns op's raw state, leaving metric derivation (and any merge
// against prior partitions) to the caller.
func buildSketchState(p property.Property, op operator.SketchOperator, rows []sqlexec.Row, eng *sketch.Engine) (state.State, error) {
	pid := p.Key().Identifier()
	if q, isQuantile := op.Quantile(); isQuantile {
		values := make([]float64, 0, len(rows))
		for _, r := range rows {
			v := r["v"]
			if v == nil {
				continue
			}
			f, ok := asFloat64(v)
			if !ok {
				return nil, fmt.Errorf("planner: non-numeric value streamed to quantile sketch for %s", p.String())
			}
			values = append(values, f)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("no rows available to evaluate %s", p.String())
		}
		return eng.BuildQuantileState(pid, values, q)
	}

	values := make([]string, 0, len(rows))
	for _, r := range rows {
		v := r["v"]
		if v == nil {
			continue
		}
		values = append(values, fmt.Sprint(v))
	}
	return eng.BuildApproxDistinctState(pid, values)
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
