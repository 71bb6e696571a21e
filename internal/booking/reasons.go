package booking

import (
	"fmt"
	"strings"
)

type ReasonCode string

const (
	ReasonCourtMaintenance        ReasonCode = "court maintenance"
	ReasonWeatherConditions       ReasonCode = "weather conditions"
	ReasonFacilityUpgrades        ReasonCode = "facility upgrades"
	ReasonUnexpectedCircumstances ReasonCode = "unexpected circumstances"
	ReasonCustom                  ReasonCode = "custom"
)

const maxCustomReasonLength = 500

var reasonCodes = []ReasonCode{
	ReasonCourtMaintenance,
	ReasonWeatherConditions,
	ReasonFacilityUpgrades,
	ReasonUnexpectedCircumstances,
	ReasonCustom,
}

// ReasonCodes lists the selectable reschedule reasons in display order.
func ReasonCodes() []ReasonCode {
	out := make([]ReasonCode, len(reasonCodes))
	copy(out, reasonCodes)
	return out
}

// Reason explains a reschedule. Custom carries the free text when Code is
// ReasonCustom and is ignored otherwise.
type Reason struct {
	Code   ReasonCode `json:"code"`
	Custom string     `json:"custom,omitempty"`
}

func (r Reason) Validate() error {
	known := false
	for _, code := range reasonCodes {
		if r.Code == code {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: unknown reason %q", ErrInvalidReason, r.Code)
	}
	if r.Code == ReasonCustom {
		custom := strings.TrimSpace(r.Custom)
		if custom == "" {
			return fmt.Errorf("%w: custom reason must not be empty", ErrInvalidReason)
		}
		if len(custom) > maxCustomReasonLength {
			return fmt.Errorf("%w: custom reason must be %d characters or fewer", ErrInvalidReason, maxCustomReasonLength)
		}
	}
	return nil
}

// Text is the reason as recorded on the booking and shown to the customer.
func (r Reason) Text() string {
	if r.Code == ReasonCustom {
		return strings.TrimSpace(r.Custom)
	}
	return string(r.Code)
}
