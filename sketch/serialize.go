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

package sketch

import (
	"encoding/base64"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// encodeBytes compresses buf with zstd and base64-encodes the result,
// the form persisted states carry their sketch payload in (spec.md §6:
// "states are persisted as JSON", and JSON has no native byte-string
// type).
func encodeBytes(buf []byte) (string, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return "", fmt.Errorf("sketch: create zstd writer: %w", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(buf, nil)
	return base64.StdEncoding.EncodeToString(compressed), nil
}

func decodeBytes(s string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("sketch: decode base64: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("sketch: create zstd reader: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("sketch: decompress: %w", err)
	}
	return raw, nil
}
