package slots

// Section groups the slots of the booking grid by time of day.
type Section struct {
	Title string
	Note  string
	From  Slot
	To    Slot // inclusive
}

var sections = []Section{
	{Title: "Early Morning (12AM - 5AM)", Note: "Strictly no Walk-ins", From: 0, To: 5},
	{Title: "Morning (6AM - 11AM)", From: 6, To: 11},
	{Title: "Afternoon (12PM - 5PM)", From: 12, To: 17},
	{Title: "Evening (6PM - 11PM)", From: 18, To: 23},
}

// Sections returns the grid sections in display order.
func Sections() []Section {
	out := make([]Section, len(sections))
	copy(out, sections)
	return out
}

// SectionOf returns the section containing slot.
func SectionOf(slot Slot) Section {
	for _, section := range sections {
		if slot >= section.From && slot <= section.To {
			return section
		}
	}
	return Section{}
}

// Contains reports whether slot falls in the section.
func (s Section) Contains(slot Slot) bool {
	return slot >= s.From && slot <= s.To
}
