// Package slots models the fixed catalog of 24 one-hour booking slots in a
// calendar day. A Slot is identified by its start hour; all interval math is
// done on integers and strings only appear at the Parse/String boundary.
package slots

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// PerDay is the number of bookable slots in a calendar day.
const PerDay = 24

// Slot is a one-hour booking slot identified by its start hour (0..23).
type Slot int

// Valid reports whether s is within 0..23.
func (s Slot) Valid() bool {
	return s >= 0 && s < PerDay
}

// Hour returns the start hour of the slot.
func (s Slot) Hour() int {
	return int(s)
}

// String renders the slot identifier, e.g. "09:00".
func (s Slot) String() string {
	return fmt.Sprintf("%02d:00", int(s))
}

// EndsNextDay is true for the 23:00 slot, which finishes at midnight of the
// following calendar date.
func (s Slot) EndsNextDay() bool {
	return s == PerDay-1
}

// Label renders the slot as a 12-hour range, e.g. "11:00PM - 12:00AM".
func (s Slot) Label() string {
	return fmt.Sprintf("%s - %s", clockLabel(int(s)), clockLabel((int(s)+1)%PerDay))
}

// StartLabel renders the slot's start in 12-hour form, e.g. "9:00AM".
func (s Slot) StartLabel() string {
	return clockLabel(int(s))
}

func clockLabel(hour int) string {
	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:00%s", display, period)
}

// MarshalText encodes the slot as "HH:00".
func (s Slot) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid slot hour %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes "HH:00", "H:00", "HH:00:00" or a bare hour.
func (s *Slot) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Parse converts a slot identifier into a Slot. Minutes other than zero are
// rejected because slots are whole hours. A trailing range ("10:00-11:00")
// is accepted and only its start is used.
func Parse(value string) (Slot, error) {
	raw := strings.TrimSpace(value)
	if start, _, ok := strings.Cut(raw, "-"); ok {
		raw = strings.TrimSpace(start)
	}
	if raw == "" {
		return 0, fmt.Errorf("slot is required")
	}

	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid slot %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid slot %q", value)
	}
	for _, part := range parts[1:] {
		minutes, err := strconv.Atoi(part)
		if err != nil || minutes != 0 {
			return 0, fmt.Errorf("slot %q must start on the hour", value)
		}
	}

	slot := Slot(hour)
	if !slot.Valid() {
		return 0, fmt.Errorf("slot %q is outside 00:00-23:00", value)
	}
	return slot, nil
}

// ParseAll parses every identifier in values, failing on the first bad one.
func ParseAll(values []string) ([]Slot, error) {
	parsed := make([]Slot, 0, len(values))
	for _, value := range values {
		slot, err := Parse(value)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, slot)
	}
	return parsed, nil
}

// All returns the 24 slots of a day in ascending order.
func All() []Slot {
	all := make([]Slot, PerDay)
	for i := range all {
		all[i] = Slot(i)
	}
	return all
}

// Normalize returns a sorted copy of list with duplicates removed.
func Normalize(list []Slot) []Slot {
	seen := make(map[Slot]struct{}, len(list))
	normalized := make([]Slot, 0, len(list))
	for _, slot := range list {
		if _, ok := seen[slot]; ok {
			continue
		}
		seen[slot] = struct{}{}
		normalized = append(normalized, slot)
	}
	sort.Slice(normalized, func(i, j int) bool { return normalized[i] < normalized[j] })
	return normalized
}

// Strings formats each slot as "HH:00".
func Strings(list []Slot) []string {
	out := make([]string, len(list))
	for i, slot := range list {
		out[i] = slot.String()
	}
	return out
}

// Bounds returns the legacy start/end summary of a selection: the earliest
// start hour and one past the latest start hour. An end bound of 24 means
// midnight of the next day. ok is false for an empty selection.
func Bounds(list []Slot) (start, end int, ok bool) {
	if len(list) == 0 {
		return 0, 0, false
	}
	minSlot, maxSlot := list[0], list[0]
	for _, slot := range list[1:] {
		if slot < minSlot {
			minSlot = slot
		}
		if slot > maxSlot {
			maxSlot = slot
		}
	}
	return int(minSlot), int(maxSlot) + 1, true
}

// FormatBound renders an hour bound in 0..24 as "HH:00"; 24 renders as "00:00".
func FormatBound(hour int) string {
	return fmt.Sprintf("%02d:00", hour%PerDay)
}

// Range expands the half-open legacy interval [start, end) into slots. An end
// at or before start is read as running through midnight.
func Range(start, end int) []Slot {
	if start < 0 || start >= PerDay {
		return nil
	}
	if end <= start || end > PerDay {
		end = PerDay
	}
	out := make([]Slot, 0, end-start)
	for hour := start; hour < end; hour++ {
		out = append(out, Slot(hour))
	}
	return out
}
