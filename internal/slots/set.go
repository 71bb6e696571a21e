package slots

// Set is a bitmask of the 24 slots of a day. The zero value is empty.
type Set uint32

const fullSet Set = 1<<PerDay - 1

// FullSet returns a set containing every slot of the day.
func FullSet() Set {
	return fullSet
}

// NewSet builds a set from list, ignoring invalid hours.
func NewSet(list ...Slot) Set {
	var s Set
	for _, slot := range list {
		s = s.Add(slot)
	}
	return s
}

// Add returns s with slot included.
func (s Set) Add(slot Slot) Set {
	if !slot.Valid() {
		return s
	}
	return s | 1<<uint(slot)
}

// Union returns every slot in s or other.
func (s Set) Union(other Set) Set {
	return s | other
}

// Has reports whether slot is in s.
func (s Set) Has(slot Slot) bool {
	return slot.Valid() && s&(1<<uint(slot)) != 0
}

// Len returns the number of slots in s.
func (s Set) Len() int {
	n := 0
	for v := s; v != 0; v &= v - 1 {
		n++
	}
	return n
}

func (s Set) IsEmpty() bool { return s == 0 }

func (s Set) IsFull() bool { return s&fullSet == fullSet }

// Slots lists the members of s in ascending order.
func (s Set) Slots() []Slot {
	out := make([]Slot, 0, s.Len())
	for hour := 0; hour < PerDay; hour++ {
		if s.Has(Slot(hour)) {
			out = append(out, Slot(hour))
		}
	}
	return out
}
