package market

import "fmt"

// SchemaError reports an input table that does not match the expected
// per-operation schema, e.g. a missing identifier or a band count mismatch.
type SchemaError struct {
	Table string
	Msg   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error in %s: %s", e.Table, e.Msg)
}

// BuildOrderError reports a builder call that references entities not yet
// created, e.g. price bids before volume bids.
type BuildOrderError struct {
	Op      string
	Missing string
}

func (e *BuildOrderError) Error() string {
	return fmt.Sprintf("%s requires %s to be set first", e.Op, e.Missing)
}

// DuplicateKeyError reports a repeated row where the operation requires a
// unique key.
type DuplicateKeyError struct {
	Table string
	Key   string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %q in %s", e.Key, e.Table)
}

// DomainError reports an input value outside its valid domain, e.g. a negative
// capacity or non-monotonic price bands.
type DomainError struct {
	Table string
	Key   string
	Msg   string
}

func (e *DomainError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("invalid value in %s: %s", e.Table, e.Msg)
	}
	return fmt.Sprintf("invalid value in %s for %q: %s", e.Table, e.Key, e.Msg)
}

// UnsupportedElasticityError reports an attempt to make an equality constraint
// family elastic. The relaxation sign of an `=` constraint is ambiguous, so the
// conversion is refused rather than guessed.
type UnsupportedElasticityError struct {
	Family string
}

func (e *UnsupportedElasticityError) Error() string {
	return fmt.Sprintf("constraint family %q contains equality constraints and cannot be made elastic", e.Family)
}

// InfeasibleModelError wraps a solver report that no feasible point exists.
type InfeasibleModelError struct {
	Err error
}

func (e *InfeasibleModelError) Error() string {
	return fmt.Sprintf("market model is infeasible: %v", e.Err)
}

func (e *InfeasibleModelError) Unwrap() error { return e.Err }
