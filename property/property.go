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

import (
	"crypto/sha1"
	"encoding/binary"
	"strconv"
)

// Key is the canonical 4-tuple identity of a Property: two properties
// are equal iff their Keys are equal. Key is comparable, so it is safe
// to use as a map key even though some Property kinds carry
// non-comparable fields (column slices).
type Key struct {
	Kind     string
	Instance string
	Entity   Entity
	Where    string
}

// canonical returns the exact byte sequence that Identifier hashes.
// The format is documented because states key off this digest across
// process and language boundaries (spec: do not rely on language-
// provided hash functions).
func (k Key) canonical() []byte {
	return []byte(k.Kind + "|" + k.Instance + "|" + k.Entity.String() + "|" + k.Where)
}

// Identifier is the stable 64-bit digest of a Key: the first 8 bytes of
// SHA-1 over the canonical encoding, read big-endian. This is the
// property_identifier used to key states and to derive aggregation-alias
// names.
func (k Key) Identifier() uint64 {
	sum := sha1.Sum(k.canonical())
	return binary.BigEndian.Uint64(sum[:8])
}

// String renders the identifier as the decimal form used for
// property_id in the persistence schema.
func (k Key) String() string {
	return strconv.FormatUint(k.Identifier(), 10)
}

// Property is a descriptor of one measurable quantity on the dataset.
// The catalog is closed: every concrete implementation lives in this
// package, matching the reference engine's non-extensible set.
type Property interface {
	// Key returns the (kind, instance, entity, where) identity tuple.
	Key() Key
	// MetricType reports whether evaluating this property yields a
	// DoubleMetric or a SchemaMetric.
	MetricType() MetricType
	// Preconditions lists the schema requirements that must hold
	// before this property can be compiled and executed.
	Preconditions() []Precondition
	// String renders a short human-readable summary, e.g. "Completeness(productName)".
	String() string
	// Where returns the raw SQL predicate filter attached to this
	// property, and whether one was attached at all.
	Where() (string, bool)
}

type base struct {
	kind     string
	instance string
	entity   Entity
	where    string
	hasWhere bool
}

func (b base) Key() Key {
	where := ""
	if b.hasWhere {
		where = b.where
	}
	return Key{Kind: b.kind, Instance: b.instance, Entity: b.entity, Where: where}
}

func (b base) String() string {
	s := b.kind + "(" + b.instance + ")"
	if b.hasWhere {
		s += " WHERE " + b.where
	}
	return s
}

// Where returns the raw SQL predicate filter, if any was attached.
func (b base) Where() (string, bool) { return b.where, b.hasWhere }

func newBase(kind, instance string, entity Entity, where *string) base {
	b := base{kind: kind, instance: instance, entity: entity}
	if where != nil {
		b.where = *where
		b.hasWhere = true
	}
	return b
}
