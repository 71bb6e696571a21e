package booking

import (
	"fmt"

	"github.com/codr1/Picklepoint/internal/models"
	"github.com/codr1/Picklepoint/internal/pricing"
	"github.com/codr1/Picklepoint/internal/slots"
)

// ValidatedSelection is a slot selection checked against a blocked set and
// priced for one court.
type ValidatedSelection struct {
	Slots []slots.Slot  `json:"slots"`
	Quote pricing.Quote `json:"quote"`
}

// StartHour and EndHour are the legacy summary bounds of the selection.
func (s ValidatedSelection) StartHour() int {
	start, _, _ := slots.Bounds(s.Slots)
	return start
}

func (s ValidatedSelection) EndHour() int {
	_, end, _ := slots.Bounds(s.Slots)
	return end
}

// ValidateSelection checks selected against blocked and quotes it. It has no
// side effects and may be called every time the selection changes.
func ValidateSelection(selected []slots.Slot, blocked slots.Set, court models.Court) (ValidatedSelection, error) {
	if len(selected) == 0 {
		return ValidatedSelection{}, ErrEmptySelection
	}

	normalized := slots.Normalize(selected)
	for _, slot := range normalized {
		if !slot.Valid() {
			return ValidatedSelection{}, fmt.Errorf("%w: hour %d", ErrInvalidSlot, slot.Hour())
		}
	}
	for _, slot := range normalized {
		if blocked.Has(slot) {
			return ValidatedSelection{}, SlotUnavailableError{Slot: slot}
		}
	}

	return ValidatedSelection{
		Slots: normalized,
		Quote: pricing.QuoteSlots(normalized, court),
	}, nil
}
