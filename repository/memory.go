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
	"fmt"
	"strings"
	"sync"

	"github.com/dchest/siphash"
	"github.com/google/uuid"

	"github.com/dqcore/dqengine/check"
	"github.com/dqcore/dqengine/state"
)

// InMemory is the non-durable Repository used for one-shot runs: every
// write lands in a process-local map, nothing survives the process.
// Safe for concurrent use.
type InMemory struct {
	mu sync.Mutex

	currentRun map[string]string             // dataset id -> most recently opened run id
	states     map[string]map[uint64][]state.State // dataset id -> property id -> states
	metrics    map[string][]MetricRecord     // run id -> records
	checks     map[string][]check.CheckResult // run id -> results
}

// NewInMemory returns an empty InMemory repository.
func NewInMemory() *InMemory {
	return &InMemory{
		currentRun: make(map[string]string),
		states:     make(map[string]map[uint64][]state.State),
		metrics:    make(map[string][]MetricRecord),
		checks:     make(map[string][]check.CheckResult),
	}
}

func (r *InMemory) SetDataset(ctx context.Context, datasetID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	runID := strings.ReplaceAll(uuid.NewString(), "-", "_")
	r.currentRun[datasetID] = runID
	if _, ok := r.states[datasetID]; !ok {
		r.states[datasetID] = make(map[uint64][]state.State)
	}
	return runID, nil
}

func (r *InMemory) RegisterState(ctx context.Context, datasetID string, st state.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	byProp, ok := r.states[datasetID]
	if !ok {
		byProp = make(map[uint64][]state.State)
		r.states[datasetID] = byProp
	}
	byProp[st.PropertyID()] = append(byProp[st.PropertyID()], st)
	return nil
}

func (r *InMemory) LoadStates(ctx context.Context, datasetID string, propertyID uint64) ([]state.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byProp, ok := r.states[datasetID]
	if !ok {
		return nil, nil
	}
	existing := byProp[propertyID]
	out := make([]state.State, len(existing))
	copy(out, existing)
	return out, nil
}

// GetFrequencyTableName derives a stable name from (datasetID, columns)
// via siphash, matching the SQL-backed implementation's naming scheme
// so tests can exercise both with identical expectations.
func (r *InMemory) GetFrequencyTableName(datasetID string, columns []string) string {
	return frequencyTableName(datasetID, columns)
}

func (r *InMemory) StoreMetrics(ctx context.Context, runID string, records []MetricRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics[runID] = append(r.metrics[runID], records...)
	return nil
}

func (r *InMemory) StoreChecks(ctx context.Context, runID string, results []check.CheckResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[runID] = append(r.checks[runID], results...)
	return nil
}

// Metrics returns everything stored for runID, for test assertions.
func (r *InMemory) Metrics(runID string) []MetricRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MetricRecord, len(r.metrics[runID]))
	copy(out, r.metrics[runID])
	return out
}

// Checks returns everything stored for runID, for test assertions.
func (r *InMemory) Checks(runID string) []check.CheckResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]check.CheckResult, len(r.checks[runID]))
	copy(out, r.checks[runID])
	return out
}

// frequencyTableName is shared by InMemory and SQL so both name a
// (dataset, grouping columns) frequency table identically.
func frequencyTableName(datasetID string, columns []string) string {
	h := siphash.Hash(0x6672657175656e63, 0x795f7461626c65, []byte(datasetID+"|"+strings.Join(columns, ",")))
	return fmt.Sprintf("dq_state_freq_%x", h)
}

var _ Repository = (*InMemory)(nil)
