/*
 * Copyright 2026 Hewlett Packard Enterprise Development LP
 * Other additional copyright holders may be indicated within.
 *
 * The entirety of this work is licensed under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 *
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package quantity implements the size and extent grammar used by LVM
// logical volume requests.
//
// Sizes are a decimal count followed by exactly one unit letter from
// K, M, G, T, P or E. LVM treats the unit case-insensitively and always as
// a binary multiple, so "10G" and "10g" are both 10 GiB.
//
// Extents are either a raw logical extent count ("2560") or a percentage of
// a basis ("50%VG", "100%FREE").
package quantity

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"regexp"
	"strconv"
	"strings"
)

const (
	KiB int64 = 1 << 10
	MiB int64 = 1 << 20
	GiB int64 = 1 << 30
	TiB int64 = 1 << 40
	PiB int64 = 1 << 50
	EiB int64 = 1 << 60
)

var (
	// ErrInvalidSize is returned when a string does not match the size grammar.
	ErrInvalidSize = errors.New("invalid size")

	// ErrInvalidExtents is returned when a string does not match the extents grammar.
	ErrInvalidExtents = errors.New("invalid extents")

	// ErrInvalidStripeSize is returned for a stripe size outside the allowed set.
	ErrInvalidStripeSize = errors.New("invalid stripe size")

	// ErrOverflow is returned when a quantity does not fit in an int64 byte count.
	ErrOverflow = errors.New("quantity overflows")
)

var (
	sizeRegexp    = regexp.MustCompile(`(?i)^([0-9]+)([KMGTPE])$`)
	extentsRegexp = regexp.MustCompile(`(?i)^([0-9]+)(%(VG|PVS|FREE|ORIGIN))?$`)
)

var unitMultiplier = map[byte]int64{
	'K': KiB,
	'M': MiB,
	'G': GiB,
	'T': TiB,
	'P': PiB,
	'E': EiB,
}

// Size is a count of binary units, e.g. 10G.
type Size struct {
	Value int64
	Unit  byte
}

// ParseSize parses a size such as "500M" or "10g". The whole string must
// match; trailing characters are rejected.
func ParseSize(s string) (Size, error) {
	m := sizeRegexp.FindStringSubmatch(s)
	if m == nil {
		return Size{}, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Size{}, fmt.Errorf("%w: %q: %w", ErrInvalidSize, s, err)
	}

	return Size{Value: value, Unit: strings.ToUpper(m[2])[0]}, nil
}

// Bytes returns the size in bytes.
func (s Size) Bytes() (int64, error) {
	mult, ok := unitMultiplier[s.Unit]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q", ErrInvalidSize, string(s.Unit))
	}

	hi, lo := bits.Mul64(uint64(s.Value), uint64(mult))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %s", ErrOverflow, s)
	}

	return int64(lo), nil
}

func (s Size) String() string {
	return fmt.Sprintf("%d%c", s.Value, s.Unit)
}

// Basis is the reference an extents percentage is taken against.
type Basis string

const (
	BasisNone   Basis = ""
	BasisVG     Basis = "VG"
	BasisPVS    Basis = "PVS"
	BasisFree   Basis = "FREE"
	BasisOrigin Basis = "ORIGIN"
)

// Extents is either a raw extent count or a percentage of a basis.
type Extents struct {
	Count int64
	Basis Basis
}

// ParseExtents parses "2560", "50%VG", "100%free" and friends.
func ParseExtents(s string) (Extents, error) {
	m := extentsRegexp.FindStringSubmatch(s)
	if m == nil {
		return Extents{}, fmt.Errorf("%w: %q", ErrInvalidExtents, s)
	}

	count, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Extents{}, fmt.Errorf("%w: %q: %w", ErrInvalidExtents, s, err)
	}

	e := Extents{Count: count, Basis: Basis(strings.ToUpper(m[3]))}
	if e.Count == 0 {
		return Extents{}, fmt.Errorf("%w: %q: extents must be positive", ErrInvalidExtents, s)
	}

	// A snapshot may be sized past its origin; the other bases cap at 100%.
	if e.IsPercent() && e.Basis != BasisOrigin && e.Count > 100 {
		return Extents{}, fmt.Errorf("%w: %q: percentage exceeds 100", ErrInvalidExtents, s)
	}

	return e, nil
}

// IsPercent is true when the extents are relative to a basis.
func (e Extents) IsPercent() bool {
	return e.Basis != BasisNone
}

func (e Extents) String() string {
	if e.IsPercent() {
		return fmt.Sprintf("%d%%%s", e.Count, e.Basis)
	}

	return strconv.FormatInt(e.Count, 10)
}

// Resolve turns the extents into an absolute extent count. total is the
// number of extents the basis refers to. Percentages round down, the way
// lvcreate does.
func (e Extents) Resolve(total int64) int64 {
	if !e.IsPercent() {
		return e.Count
	}

	return total * e.Count / 100
}

// StripeSizes lists the allowed stripe sizes in KiB.
var StripeSizes = []int{4, 8, 16, 32, 64, 128, 256, 512}

// ParseStripeSize accepts exactly one of the StripeSizes literals.
func ParseStripeSize(s string) (int, error) {
	for _, size := range StripeSizes {
		if s == strconv.Itoa(size) {
			return size, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidStripeSize, s)
}

// RoundUpToExtent rounds bytes up to a whole multiple of extentSize. A
// non-positive extent size leaves the value untouched.
func RoundUpToExtent(bytes, extentSize int64) int64 {
	if extentSize <= 0 {
		return bytes
	}

	extents := bytes / extentSize
	if bytes%extentSize > 0 {
		extents++
	}

	return extents * extentSize
}

// FormatBytes renders bytes using the largest binary unit that divides it
// evenly, falling back to a raw byte count.
func FormatBytes(bytes int64) string {
	units := []struct {
		unit byte
		mult int64
	}{{'E', EiB}, {'P', PiB}, {'T', TiB}, {'G', GiB}, {'M', MiB}, {'K', KiB}}

	for _, u := range units {
		if bytes != 0 && bytes%u.mult == 0 {
			return fmt.Sprintf("%d%c", bytes/u.mult, u.unit)
		}
	}

	return fmt.Sprintf("%dB", bytes)
}
