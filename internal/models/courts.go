// internal/models/courts.go
package models

import (
	"fmt"
	"strings"
	"time"
)

const maxCourtNameLength = 100

// Court types containing one of these markers reserve the whole venue.
var exclusiveCourtMarkers = []string{"Exclusive", "Whole"}

// PricingRule overrides the base price for the hours in [StartHour, EndHour).
// A rule with StartHour > EndHour wraps past midnight.
type PricingRule struct {
	StartHour  int   `json:"startHour" yaml:"start_hour"`
	EndHour    int   `json:"endHour" yaml:"end_hour"`
	PriceCents int64 `json:"priceCents" yaml:"price_cents"`
}

func (r PricingRule) Validate() error {
	if r.StartHour < 0 || r.StartHour > 23 {
		return fmt.Errorf("startHour must be between 0 and 23")
	}
	if r.EndHour < 0 || r.EndHour > 24 {
		return fmt.Errorf("endHour must be between 0 and 24")
	}
	if r.PriceCents < 0 {
		return fmt.Errorf("price must not be negative")
	}
	return nil
}

// Court is owned by court management; the booking engine only reads it.
type Court struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	Type           string        `json:"type"`
	BasePriceCents int64         `json:"basePriceCents"`
	PricingRules   []PricingRule `json:"pricingRules"`
	Capacity       int64         `json:"capacity"`
	IsActive       bool          `json:"isActive"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// IsExclusiveType reports whether a court type books the entire venue.
func IsExclusiveType(courtType string) bool {
	for _, marker := range exclusiveCourtMarkers {
		if strings.Contains(courtType, marker) {
			return true
		}
	}
	return false
}

// IsExclusive reports whether booking this court blocks every other court.
func (c Court) IsExclusive() bool {
	return IsExclusiveType(c.Type)
}

func (c Court) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return fmt.Errorf("court name is required")
	}
	if len(name) > maxCourtNameLength {
		return fmt.Errorf("court name must be %d characters or fewer", maxCourtNameLength)
	}
	if c.BasePriceCents < 0 {
		return fmt.Errorf("court base price must not be negative")
	}
	for i, rule := range c.PricingRules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("pricing rule %d: %w", i, err)
		}
	}
	return nil
}
