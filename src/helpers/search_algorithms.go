package helpers

import "sort"

// SortedSet is an immutable set of strings kept in sorted order so membership
// is a binary search.
type SortedSet struct {
	values []string
}

// NewSortedSet builds a set from values, dropping duplicates.
func NewSortedSet(values ...string) SortedSet {
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)

	unique := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			unique = append(unique, v)
		}
	}
	return SortedSet{values: unique}
}

// Contains reports whether value is in the set.
func (s SortedSet) Contains(value string) bool {
	low, high := 0, len(s.values)-1
	for low <= high {
		mid := (low + high) / 2
		switch {
		case s.values[mid] == value:
			return true
		case s.values[mid] < value:
			low = mid + 1
		default:
			high = mid - 1
		}
	}
	return false
}

// Difference returns the members of s missing from other, in ascending order.
func (s SortedSet) Difference(other SortedSet) []string {
	var missing []string
	for _, v := range s.values {
		if !other.Contains(v) {
			missing = append(missing, v)
		}
	}
	return missing
}
