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

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dqcore/dqengine/check"
	"github.com/dqcore/dqengine/metric"
	"github.com/dqcore/dqengine/state"
)

// SQL is a database/sql-backed Repository. The caller owns db's
// lifecycle (opening, closing, connection pooling); SQL only issues
// statements against the four fixed tables, created on first use.
//
// The spec's SQL-connection-pool/URL dispatcher is out of scope, so
// NewSQL simply takes an already-open *sql.DB rather than a URL.
type SQL struct {
	db *sql.DB

	mu         sync.Mutex
	currentRun map[string]string // dataset id -> most recently opened run id
}

// NewSQL wraps db, creating the fixed schema tables if they do not
// already exist.
func NewSQL(ctx context.Context, db *sql.DB) (*SQL, error) {
	r := &SQL{db: db, currentRun: make(map[string]string)}
	for _, ddl := range []string{ddlRuns, ddlChecks, ddlMetrics, ddlStates} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return nil, fmt.Errorf("repository: creating schema: %w", err)
		}
	}
	return r, nil
}

func (r *SQL) SetDataset(ctx context.Context, datasetID string) (string, error) {
	runID := strings.ReplaceAll(uuid.NewString(), "-", "_")
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dq_validation_runs (run_id, ts, dataset_id, partition_id) VALUES (?, ?, ?, ?)`,
		runID, time.Now().UTC(), datasetID, "")
	if err != nil {
		return "", fmt.Errorf("repository: opening run for %q: %w", datasetID, err)
	}
	r.mu.Lock()
	r.currentRun[datasetID] = runID
	r.mu.Unlock()
	return runID, nil
}

func (r *SQL) runFor(datasetID string) (string, error) {
	r.mu.Lock()
	runID, ok := r.currentRun[datasetID]
	r.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("repository: no open run for dataset %q; call SetDataset first", datasetID)
	}
	return runID, nil
}

// RegisterState persists st as JSON under the dataset's currently open
// run. The fixed schema has no dataset_id column on dq_states: a
// state's dataset is recovered by joining dq_states.run_id against
// dq_validation_runs.dataset_id.
func (r *SQL) RegisterState(ctx context.Context, datasetID string, st state.State) error {
	runID, err := r.runFor(datasetID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("repository: serializing state: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO dq_states (run_id, property_id, state_type, state_serialized) VALUES (?, ?, ?, ?)`,
		runID, strconv.FormatUint(st.PropertyID(), 10), st.TypeName(), string(payload))
	if err != nil {
		return fmt.Errorf("repository: persisting state: %w", err)
	}
	return nil
}

// LoadStates returns every state previously registered for propertyID
// under any run opened against datasetID, oldest first.
func (r *SQL) LoadStates(ctx context.Context, datasetID string, propertyID uint64) ([]state.State, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.state_type, s.state_serialized
		FROM dq_states s
		JOIN dq_validation_runs v ON v.run_id = s.run_id
		WHERE v.dataset_id = ? AND s.property_id = ?
		ORDER BY v.ts ASC`,
		datasetID, strconv.FormatUint(propertyID, 10))
	if err != nil {
		return nil, fmt.Errorf("repository: loading states: %w", err)
	}
	defer rows.Close()

	var out []state.State
	for rows.Next() {
		var typeName, payload string
		if err := rows.Scan(&typeName, &payload); err != nil {
			return nil, fmt.Errorf("repository: scanning state row: %w", err)
		}
		st, err := unmarshalState(typeName, []byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func unmarshalState(typeName string, payload []byte) (state.State, error) {
	switch typeName {
	case "NumMatches":
		var s state.NumMatches
		return s, json.Unmarshal(payload, &s)
	case "NumMatchesAndCount":
		var s state.NumMatchesAndCount
		return s, json.Unmarshal(payload, &s)
	case "MinState":
		var s state.MinState
		return s, json.Unmarshal(payload, &s)
	case "MaxState":
		var s state.MaxState
		return s, json.Unmarshal(payload, &s)
	case "SumState":
		var s state.SumState
		return s, json.Unmarshal(payload, &s)
	case "MeanState":
		var s state.MeanState
		return s, json.Unmarshal(payload, &s)
	case "StandardDeviationState":
		var s state.StandardDeviationState
		return s, json.Unmarshal(payload, &s)
	case "QuantileState":
		var s state.QuantileState
		return s, json.Unmarshal(payload, &s)
	case "ApproxDistinctState":
		var s state.ApproxDistinctState
		return s, json.Unmarshal(payload, &s)
	case "SchemaState":
		var s state.SchemaState
		return s, json.Unmarshal(payload, &s)
	case "FrequenciesAndNumRows":
		var s state.FrequenciesAndNumRows
		return s, json.Unmarshal(payload, &s)
	default:
		return nil, fmt.Errorf("repository: unknown persisted state type %q", typeName)
	}
}

// GetFrequencyTableName derives a stable name from (datasetID, columns).
func (r *SQL) GetFrequencyTableName(datasetID string, columns []string) string {
	return frequencyTableName(datasetID, columns)
}

// StoreMetrics persists one row per measured property.
func (r *SQL) StoreMetrics(ctx context.Context, runID string, records []MetricRecord) error {
	for _, rec := range records {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO dq_metrics (run_id, property_id, metric_type, metric_value) VALUES (?, ?, ?, ?)`,
			runID, rec.Property, rec.Metric.MetricType().String(), metricValueText(rec.Metric))
		if err != nil {
			return fmt.Errorf("repository: persisting metric for %s: %w", rec.Property, err)
		}
	}
	return nil
}

// metricValueText renders a metric's value (or failure message) as the
// opaque TEXT the fixed schema's metric_value column stores.
func metricValueText(m metric.Any) string {
	if m.Failed() {
		return "ERROR: " + m.FailureMessage()
	}
	switch v := m.(type) {
	case metric.DoubleMetric:
		f, _ := v.Value.Get()
		return strconv.FormatFloat(f, 'g', -1, 64)
	case metric.SchemaMetric:
		sc, _ := v.Value.Get()
		b, err := json.Marshal(sc)
		if err != nil {
			return "ERROR: " + err.Error()
		}
		return string(b)
	default:
		return ""
	}
}

// StoreChecks persists one opaque, human-readable summary per check
// result: the spec excludes a serialization format for user-supplied
// predicate callables, so check_serialized is a description, not a
// callable-capturing blob.
func (r *SQL) StoreChecks(ctx context.Context, runID string, results []check.CheckResult) error {
	for _, res := range results {
		var b strings.Builder
		fmt.Fprintf(&b, "%s: %s", res.Status, res.Check.Description)
		for _, cr := range res.ConstraintResults {
			if !cr.OK {
				fmt.Fprintf(&b, "; %s", cr.Message)
			}
		}
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO dq_checks (run_id, check_description, check_level, check_serialized) VALUES (?, ?, ?, ?)`,
			runID, res.Check.Description, res.Check.Level.String(), b.String())
		if err != nil {
			return fmt.Errorf("repository: persisting check %q: %w", res.Check.Description, err)
		}
	}
	return nil
}

var _ Repository = (*SQL)(nil)
