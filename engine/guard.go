package engine

// IsDateReadOnly reports whether mutations against the given date are
// rejected. A date is read-only exactly when it lies before the
// authoritative today; this predicate is the single implementation of
// pastness and gates every mutation entry point.
func (e *Engine) IsDateReadOnly(date string) bool {
	return e.clock.IsPast(date)
}
