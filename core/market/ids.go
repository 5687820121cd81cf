package market

// VariableID identifies a decision variable within one model build.
type VariableID int

// ConstraintID identifies a constraint within one model build.
type ConstraintID int

// IDAllocator issues unique, monotonically increasing variable and constraint
// ids for the life of one model build. Ids are never freed or reused; each
// Spot instance owns exactly one allocator.
type IDAllocator struct {
	nextVariable   VariableID
	nextConstraint ConstraintID
}

// TakeVariableIDs reserves n consecutive variable ids and returns the first.
func (a *IDAllocator) TakeVariableIDs(n int) VariableID {
	first := a.nextVariable
	a.nextVariable += VariableID(n)
	return first
}

// TakeConstraintIDs reserves n consecutive constraint ids and returns the first.
func (a *IDAllocator) TakeConstraintIDs(n int) ConstraintID {
	first := a.nextConstraint
	a.nextConstraint += ConstraintID(n)
	return first
}

// VariableCount reports how many variable ids have been issued so far.
func (a *IDAllocator) VariableCount() int { return int(a.nextVariable) }

// ConstraintCount reports how many constraint ids have been issued so far.
func (a *IDAllocator) ConstraintCount() int { return int(a.nextConstraint) }
