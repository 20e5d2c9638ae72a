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

// Package repository persists validation runs, check results, metrics
// and states across invocations, enabling incremental and partitioned
// evaluation. Grounded on
// original_source/.../metadata_repository.py; the fixed schema lives in
// schema.go.
package repository

import (
	"context"

	"github.com/dqcore/dqengine/check"
	"github.com/dqcore/dqengine/metric"
	"github.com/dqcore/dqengine/state"
)

// MetricRecord is one persisted (property, metric value) pair for a run.
type MetricRecord struct {
	RunID    string
	Property string
	Instance string
	Entity   string
	Metric   metric.Any
}

// Repository is the persistence boundary the check evaluator and
// planner run against. Implementations never see raw SQL from callers;
// they own their own schema.
type Repository interface {
	// SetDataset opens a new validation run for datasetID and returns
	// its run id.
	SetDataset(ctx context.Context, datasetID string) (runID string, err error)

	// RegisterState persists st as belonging to datasetID, so it can be
	// merged with states from other partitions or runs later.
	RegisterState(ctx context.Context, datasetID string, st state.State) error

	// LoadStates returns every previously registered state for
	// propertyID under datasetID, in registration order.
	LoadStates(ctx context.Context, datasetID string, propertyID uint64) ([]state.State, error)

	// GetFrequencyTableName returns the stable materialized-table name
	// for one set of grouping columns under datasetID.
	GetFrequencyTableName(datasetID string, columns []string) string

	// StoreMetrics persists the outcome of measuring a run's properties.
	StoreMetrics(ctx context.Context, runID string, records []MetricRecord) error

	// StoreChecks persists the outcome of evaluating a run's checks.
	StoreChecks(ctx context.Context, runID string, results []check.CheckResult) error
}
