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

// Fixed schema, bit-stable column order. The SQL-backed Repository
// creates these with CREATE TABLE IF NOT EXISTS on first use; it never
// alters them.
const (
	ddlRuns = `CREATE TABLE IF NOT EXISTS dq_validation_runs (
		run_id TEXT,
		ts TIMESTAMP,
		dataset_id TEXT,
		partition_id TEXT
	)`

	ddlChecks = `CREATE TABLE IF NOT EXISTS dq_checks (
		run_id TEXT,
		check_description TEXT,
		check_level TEXT,
		check_serialized TEXT
	)`

	ddlMetrics = `CREATE TABLE IF NOT EXISTS dq_metrics (
		run_id TEXT,
		property_id TEXT,
		metric_type TEXT,
		metric_value TEXT
	)`

	ddlStates = `CREATE TABLE IF NOT EXISTS dq_states (
		run_id TEXT,
		property_id TEXT,
		state_type TEXT,
		state_serialized TEXT
	)`
)
