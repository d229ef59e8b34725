package vm

// ---------------------------------------------------------------------------
// Memory budget
// ---------------------------------------------------------------------------

// Budget meters heap allocation in approximate bytes. It only counts up;
// freed objects are returned to the budget when the VM is restored from an
// image, never piecemeal.
type Budget struct {
	limit int
	used  int
}

// NewBudget creates a budget of the given size.
func NewBudget(limit int) Budget {
	return Budget{limit: limit}
}

// Charge reserves n bytes, reporting whether the budget allows it.
func (b *Budget) Charge(n int) bool {
	if b.used+n > b.limit {
		return false
	}
	b.used += n
	return true
}

// Used returns how many bytes have been charged.
func (b *Budget) Used() int { return b.used }

// Restore rewinds usage to a previously observed value.
func (b *Budget) Restore(used int) { b.used = used }
