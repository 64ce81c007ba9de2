package completion

// GateSatisfied reports whether every lesson in the universe is in the
// completed set. Pure derivation, safe to recompute at any time. A course
// with zero lessons cannot be complete.
func GateSatisfied(universe []int, completed map[int]bool) bool {
	if len(universe) == 0 {
		return false
	}
	for _, lessonID := range universe {
		if !completed[lessonID] {
			return false
		}
	}
	return true
}
