package mlib

import "sort"

// Member is a media's position within a series. A nil Ordinal means the
// media is attached but unordered.
type Member struct {
	MediaID int64
	Ordinal *int64
}

// OrdinalTaken reports whether n is used by any of others. Unordered
// members never conflict.
func OrdinalTaken(others []Member, n int64) bool {
	for _, m := range others {
		if m.Ordinal != nil && *m.Ordinal == n {
			return true
		}
	}
	return false
}

// InsertShift returns the members that must move to make room for a new
// member at n: every member whose ordinal is >= n, incremented by one.
// The result is ordered highest ordinal first so applying it row by row
// never produces a transient duplicate.
func InsertShift(others []Member, n int64) []Member {
	var shifted []Member
	for _, m := range others {
		if m.Ordinal == nil || *m.Ordinal < n {
			continue
		}
		shifted = append(shifted, Member{MediaID: m.MediaID, Ordinal: Ordinal(*m.Ordinal + 1)})
	}
	sort.SliceStable(shifted, func(i, j int) bool {
		return *shifted[i].Ordinal > *shifted[j].Ordinal
	})
	return shifted
}

// DenseOrder renumbers members to 1..N. Relative order follows the current
// ordinals; unordered members sort after all ordered ones. Equal keys keep
// their input order, so callers pass members sorted by media ID.
func DenseOrder(members []Member) []Member {
	out := make([]Member, len(members))
	copy(out, members)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Ordinal, out[j].Ordinal
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	for i := range out {
		out[i].Ordinal = Ordinal(int64(i + 1))
	}
	return out
}
