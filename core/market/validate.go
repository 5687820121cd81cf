package market

import (
	"fmt"
	"math"
)

// Validation helpers run at each builder's entry, before any table is touched,
// so a failed call leaves the model in its pre-call state.

func realValue(table, key, field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &DomainError{Table: table, Key: key, Msg: field + " must be a real number"}
	}
	return nil
}

func nonNegative(table, key, field string, v float64) error {
	if err := realValue(table, key, field, v); err != nil {
		return err
	}
	if v < 0 {
		return &DomainError{Table: table, Key: key, Msg: fmt.Sprintf("%s must not be negative, got %v", field, v)}
	}
	return nil
}

func uniqueUnits(table string, seen map[string]bool, unit string) error {
	if unit == "" {
		return &SchemaError{Table: table, Msg: "unit identifier is required"}
	}
	if seen[unit] {
		return &DuplicateKeyError{Table: table, Key: unit}
	}
	seen[unit] = true
	return nil
}

func uniqueUnitService(table string, seen map[UnitKey]bool, unit, service string) error {
	if unit == "" {
		return &SchemaError{Table: table, Msg: "unit identifier is required"}
	}
	k := UnitKey{Unit: unit, Service: service}
	if seen[k] {
		return &DuplicateKeyError{Table: table, Key: unit + "/" + service}
	}
	seen[k] = true
	return nil
}

func validateUnitInfo(units []UnitInfo) error {
	if len(units) == 0 {
		return &SchemaError{Table: "unit_info", Msg: "at least one unit is required"}
	}
	seen := make(map[string]bool, len(units))
	for _, u := range units {
		if err := uniqueUnits("unit_info", seen, u.Unit); err != nil {
			return err
		}
		if u.Region == "" {
			return &SchemaError{Table: "unit_info", Msg: fmt.Sprintf("unit %q has no region", u.Unit)}
		}
		if err := nonNegative("unit_info", u.Unit, "loss_factor", u.LossFactor); err != nil {
			return err
		}
		switch u.DispatchType {
		case "", DispatchGenerator, DispatchLoad:
		default:
			return &DomainError{Table: "unit_info", Key: u.Unit,
				Msg: fmt.Sprintf("dispatch_type must be %q or %q, got %q", DispatchGenerator, DispatchLoad, u.DispatchType)}
		}
	}
	return nil
}

func validateBids(table string, bids []Bid, requireMonotonic bool) error {
	seen := make(map[UnitKey]bool, len(bids))
	for _, b := range bids {
		if err := uniqueUnitService(table, seen, b.Unit, bidService(b)); err != nil {
			return err
		}
		if len(b.Bands) == 0 {
			return &SchemaError{Table: table, Msg: fmt.Sprintf("unit %q has no bid bands", b.Unit)}
		}
		if len(b.Bands) > MaxBidBands {
			return &SchemaError{Table: table, Msg: fmt.Sprintf("unit %q has %d bid bands, maximum is %d", b.Unit, len(b.Bands), MaxBidBands)}
		}
		for i, v := range b.Bands {
			field := fmt.Sprintf("band %d", i+1)
			if requireMonotonic {
				if err := realValue(table, b.Unit, field, v); err != nil {
					return err
				}
			} else if err := nonNegative(table, b.Unit, field, v); err != nil {
				return err
			}
		}
		if requireMonotonic {
			for i := 1; i < len(b.Bands); i++ {
				if b.Bands[i] < b.Bands[i-1] {
					return &DomainError{Table: table, Key: b.Unit + "/" + bidService(b),
						Msg: fmt.Sprintf("price bands must be non-decreasing, band %d (%v) < band %d (%v)",
							i+1, b.Bands[i], i, b.Bands[i-1])}
				}
			}
		}
	}
	return nil
}

func validateTrapeziums(table string, rows []Trapezium) error {
	seen := make(map[UnitKey]bool, len(rows))
	for _, tr := range rows {
		if err := uniqueUnitService(table, seen, tr.Unit, tr.Service); err != nil {
			return err
		}
		if tr.MaxAvailability <= 0 {
			return &DomainError{Table: table, Key: tr.Unit + "/" + tr.Service,
				Msg: fmt.Sprintf("max_availability must be positive, got %v", tr.MaxAvailability)}
		}
		for field, v := range map[string]float64{
			"enablement_min":  tr.EnablementMin,
			"low_break_point": tr.LowBreakPoint,
			"enablement_max":  tr.EnablementMax,
		} {
			if err := nonNegative(table, tr.Unit+"/"+tr.Service, field, v); err != nil {
				return err
			}
		}
		if err := realValue(table, tr.Unit+"/"+tr.Service, "high_break_point", tr.HighBreakPoint); err != nil {
			return err
		}
	}
	return nil
}

func validateRelation(table, key string, r Relation) error {
	switch r {
	case LessOrEqual, Equal, GreaterOrEqual:
		return nil
	default:
		return &SchemaError{Table: table, Msg: fmt.Sprintf("unknown constraint type %q for %q", r, key)}
	}
}

func bidService(b Bid) string {
	if b.Service == "" {
		return ServiceEnergy
	}
	return b.Service
}
