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

package meta

// RowRange is a half-open key range [Start, End). A nil Start
// means unbounded below; a nil End means unbounded above. The
// zero value is the default range: unbounded on both ends.
type RowRange struct {
	Start, End RowKey
}

// DefaultRange is the unbounded range used for partitions that
// are read in full (§3, §4.4).
var DefaultRange = RowRange{}

// IsDefault reports whether r is unbounded on both ends.
func (r RowRange) IsDefault() bool {
	return r.Start == nil && r.End == nil
}

// Ternary is the result of comparing a key (or a known key
// range) against a RowRange: it may always, never, or maybe
// match, mirroring the teacher's sparse-index filter compiler.
type Ternary int8

const (
	Never Ternary = -1
	Maybe Ternary = 0
	Always Ternary = 1
)

// Contains reports whether k falls within r.
func (r RowRange) Contains(k RowKey) bool {
	if r.Start != nil && k.Compare(r.Start) < 0 {
		return false
	}
	if r.End != nil && k.Compare(r.End) >= 0 {
		return false
	}
	return true
}

// Overlaps reports whether r and o, both half-open ranges,
// have any key in common.
func (r RowRange) Overlaps(o RowRange) bool {
	if r.End != nil && o.Start != nil && r.End.Compare(o.Start) <= 0 {
		return false
	}
	if o.End != nil && r.Start != nil && o.End.Compare(r.Start) <= 0 {
		return false
	}
	return true
}

// RowFilter is a set of disjoint ranges, OR-combined (§3).
type RowFilter struct {
	Ranges []RowRange
}

// Default is a RowFilter matching every row.
func Default() RowFilter {
	return RowFilter{Ranges: []RowRange{DefaultRange}}
}

// Of builds a RowFilter from explicit ranges.
func Of(ranges ...RowRange) RowFilter {
	return RowFilter{Ranges: ranges}
}

// IsDefault reports whether f is equivalent to the unbounded filter.
func (f RowFilter) IsDefault() bool {
	for _, r := range f.Ranges {
		if r.IsDefault() {
			return true
		}
	}
	return len(f.Ranges) == 0
}

// Contains reports whether k matches any range in f. An empty
// filter (no ranges at all) matches nothing.
func (f RowFilter) Contains(k RowKey) bool {
	for _, r := range f.Ranges {
		if r.Contains(k) {
			return true
		}
	}
	return false
}

// Test classifies whether every key in the half-open range
// [lo, hi) is matched by f (Always), none are (Never), or the
// answer depends on the specific key (Maybe). This mirrors the
// ternary sparse-index pruning idiom used by the teacher's
// filter compiler, adapted from row predicates to row ranges.
func (f RowFilter) Test(lo, hi RowKey) Ternary {
	block := RowRange{Start: lo, End: hi}
	anyOverlap, allContain := false, true
	for _, r := range f.Ranges {
		if !block.Overlaps(r) {
			continue
		}
		anyOverlap = true
		if !(rangeContains(r, lo) && (hi == nil || rangeContainsInclusive(r, hi))) {
			allContain = false
		}
	}
	if !anyOverlap {
		return Never
	}
	if allContain {
		return Always
	}
	return Maybe
}

func rangeContains(r RowRange, k RowKey) bool {
	if k == nil {
		return r.Start == nil
	}
	return r.Contains(k)
}

func rangeContainsInclusive(r RowRange, k RowKey) bool {
	if r.End != nil && k.Compare(r.End) > 0 {
		return false
	}
	if r.Start != nil && k.Compare(r.Start) < 0 {
		return false
	}
	return true
}

// OR combines two filters, merging their range lists. Ranges
// are not coalesced; downstream consumers only need the union
// semantics, not a minimal representation.
func OR(a, b RowFilter) RowFilter {
	out := make([]RowRange, 0, len(a.Ranges)+len(b.Ranges))
	out = append(out, a.Ranges...)
	out = append(out, b.Ranges...)
	return RowFilter{Ranges: out}
}
