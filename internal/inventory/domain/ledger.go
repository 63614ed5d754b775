package domain

import "github.com/bwmarrin/snowflake"

// DeriveStatus is the only source of an item's stock status.
func DeriveStatus(quantity, reorderLevel int64) Status {
	switch {
	case quantity <= 0:
		return StatusOut
	case quantity <= reorderLevel:
		return StatusLow
	default:
		return StatusInStock
	}
}

// NextQuantity applies one movement to current. Decreases clamp at zero and
// report the units that could not be taken as shortfall.
func NextQuantity(current int64, mode MovementType, quantity int64) (next int64, shortfall int64, err error) {
	if quantity < 0 {
		return current, 0, ErrInvalidQuantity
	}
	switch mode {
	case MovementIncrease:
		return current + quantity, 0, nil
	case MovementDecrease:
		next = current - quantity
		if next < 0 {
			return 0, -next, nil
		}
		return next, 0, nil
	case MovementSet:
		return quantity, 0, nil
	default:
		return current, 0, ErrInvalidMode
	}
}

// AdjustOutcome describes a quantity change made by Apply.
type AdjustOutcome struct {
	Previous  int64
	Resulting int64
	Shortfall int64
}

// Apply mutates quantity and recomputes status in one step.
func (i *Item) Apply(mode MovementType, quantity int64) (AdjustOutcome, error) {
	next, shortfall, err := NextQuantity(i.Quantity, mode, quantity)
	if err != nil {
		return AdjustOutcome{}, err
	}
	outcome := AdjustOutcome{Previous: i.Quantity, Resulting: next, Shortfall: shortfall}
	i.Quantity = next
	i.Status = DeriveStatus(next, i.ReorderLevel)
	return outcome, nil
}

// ResolveReferenceType picks the movement reference. Automated adjustments
// are SYSTEM; otherwise job sheet wins over booking, then MANUAL.
func ResolveReferenceType(jobSheetID, bookingID *snowflake.ID, system bool) ReferenceType {
	switch {
	case system:
		return ReferenceSystem
	case jobSheetID != nil && *jobSheetID != 0:
		return ReferenceJobSheet
	case bookingID != nil && *bookingID != 0:
		return ReferenceBooking
	default:
		return ReferenceManual
	}
}

// Replay rebuilds a quantity from movements in creation order.
func Replay(initial int64, movements []Movement) int64 {
	quantity := initial
	for _, m := range movements {
		next, _, err := NextQuantity(quantity, m.Type, m.Quantity)
		if err != nil {
			continue
		}
		quantity = next
	}
	return quantity
}

// VerifyReplay checks every recorded resulting quantity against the replay
// and returns the first movement that disagrees.
func VerifyReplay(initial int64, movements []Movement) (int64, *snowflake.ID) {
	quantity := initial
	var divergence *snowflake.ID
	for _, m := range movements {
		next, _, err := NextQuantity(quantity, m.Type, m.Quantity)
		if err == nil {
			quantity = next
		}
		if divergence == nil && (err != nil || m.ResultingQuantity != quantity) {
			id := m.ID
			divergence = &id
		}
	}
	return quantity, divergence
}
