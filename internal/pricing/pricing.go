// Package pricing resolves hourly court prices from a court's base rate and
// its ordered time-of-day override rules.
package pricing

import (
	"github.com/codr1/Picklepoint/internal/models"
	"github.com/codr1/Picklepoint/internal/slots"
)

// LineItem is the price of one slot in a quote.
type LineItem struct {
	Slot       slots.Slot `json:"slot"`
	Label      string     `json:"label"`
	PriceCents int64      `json:"priceCents"`
}

// Quote prices a slot selection. Items are in ascending slot order.
type Quote struct {
	Items      []LineItem `json:"items"`
	TotalCents int64      `json:"totalCents"`
}

// RuleMatches reports whether rule applies to hour. Rules with
// StartHour > EndHour wrap past midnight; a zero-width rule matches nothing.
func RuleMatches(rule models.PricingRule, hour int) bool {
	switch {
	case rule.StartHour == rule.EndHour:
		return false
	case rule.StartHour < rule.EndHour:
		return hour >= rule.StartHour && hour < rule.EndHour
	default:
		return hour >= rule.StartHour || hour < rule.EndHour
	}
}

// ResolveUnitPrice returns the price of the slot starting at hour: the first
// matching rule wins, otherwise the court's base price.
func ResolveUnitPrice(hour int, court models.Court) int64 {
	for _, rule := range court.PricingRules {
		if RuleMatches(rule, hour) {
			return rule.PriceCents
		}
	}
	return court.BasePriceCents
}

// QuoteSlots prices each slot of list and sums them. The result does not
// depend on the order of list.
func QuoteSlots(list []slots.Slot, court models.Court) Quote {
	ordered := slots.Normalize(list)
	quote := Quote{Items: make([]LineItem, 0, len(ordered))}
	for _, slot := range ordered {
		price := ResolveUnitPrice(slot.Hour(), court)
		quote.Items = append(quote.Items, LineItem{
			Slot:       slot,
			Label:      slot.Label(),
			PriceCents: price,
		})
		quote.TotalCents += price
	}
	return quote
}
