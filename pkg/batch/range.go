package batch

// Range is an inclusive span of batch numbers.
type Range struct {
	Min int
	Max int
}

// Len returns the number of batches in the range.
func (r Range) Len() int {
	return r.Max - r.Min + 1
}

// Contains reports whether batch lies within the range.
func (r Range) Contains(batch int) bool {
	return batch >= r.Min && batch <= r.Max
}

// ResolveRange scans the assignment for the lowest and highest batch numbers.
// ok is false when there are no primary identifiers; callers must not loop
// over the zero Range in that case.
func ResolveRange(a *Assignment) (Range, bool) {
	if a == nil || len(a.ranks) == 0 {
		return Range{}, false
	}

	var r Range
	first := true
	for _, rank := range a.ranks {
		b := rank/a.batchSize + 1
		if first {
			r = Range{Min: b, Max: b}
			first = false
			continue
		}
		r.Min = min(r.Min, b)
		r.Max = max(r.Max, b)
	}
	return r, true
}
