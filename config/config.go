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

// Package config holds the engine's ambient tuning knobs: whether the
// planner shares aggregation passes, how large a sketch to build, and
// the default hint text attached to generated constraints.
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Config is loadable from a YAML file via sigs.k8s.io/yaml, which
// round-trips through the same struct tags as encoding/json rather than
// introducing a second tag vocabulary.
type Config struct {
	// NoSharing disables aggregation sharing in the planner, forcing
	// one scan per property. Useful against backends whose query
	// planner handles a single wide SELECT worse than many narrow ones.
	NoSharing bool `json:"noSharing"`
	// SketchSize is the KLL compactor parameter k; larger values trade
	// memory for quantile accuracy.
	SketchSize int `json:"sketchSize"`
	// HLLPrecision is the number of bits used to index HyperLogLog
	// registers (register count = 2^HLLPrecision).
	HLLPrecision uint8 `json:"hllPrecision"`
	// DefaultHint is appended to the failure message of every top-level
	// check.AnalysisBased constraint that doesn't set its own Hint.
	DefaultHint string `json:"defaultHint"`
}

// Default returns the engine's built-in defaults.
func Default() Config {
	return Config{
		NoSharing:    false,
		SketchSize:   200,
		HLLPrecision: 14,
		DefaultHint:  "",
	}
}

// Load reads and parses a YAML config file, filling in Default() for
// any field the file omits.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	return cfg, nil
}
