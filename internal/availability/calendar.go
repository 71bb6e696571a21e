package availability

import (
	"time"

	"github.com/codr1/Picklepoint/internal/models"
	"github.com/codr1/Picklepoint/internal/slots"
)

type DateStatus string

const (
	DateAvailable       DateStatus = "available"
	DatePartiallyBooked DateStatus = "partially-booked"
	DateFullyBooked     DateStatus = "fully-booked"
)

// DateSummary decorates one calendar date for a court.
type DateSummary struct {
	Date         string     `json:"date"`
	Status       DateStatus `json:"status"`
	BlockedCount int        `json:"blockedCount"`
}

// Classify maps a blocked set to a calendar status.
func Classify(blocked slots.Set) DateStatus {
	switch {
	case blocked.IsFull():
		return DateFullyBooked
	case blocked.IsEmpty():
		return DateAvailable
	default:
		return DatePartiallyBooked
	}
}

// ClassifyDates computes the status of each date for court. bookingsByDate is
// keyed by YYYY-MM-DD; dates without an entry have no bookings. Nothing is
// cached: each call recomputes from its inputs.
func ClassifyDates(court models.Court, dates []time.Time, bookingsByDate map[string][]models.Booking, now time.Time) []DateSummary {
	summaries := make([]DateSummary, 0, len(dates))
	for _, date := range dates {
		key := date.Format(models.DateLayout)
		blocked := ComputeBlockedSlots(court, date, bookingsByDate[key], now, Options{})
		summaries = append(summaries, DateSummary{
			Date:         key,
			Status:       Classify(blocked),
			BlockedCount: blocked.Len(),
		})
	}
	return summaries
}

// FullyBookedDates returns the dates in summaries with every slot blocked.
func FullyBookedDates(summaries []DateSummary) []string {
	return filterDates(summaries, DateFullyBooked)
}

// PartiallyBookedDates returns the dates with some, but not all, slots blocked.
func PartiallyBookedDates(summaries []DateSummary) []string {
	return filterDates(summaries, DatePartiallyBooked)
}

func filterDates(summaries []DateSummary, status DateStatus) []string {
	var out []string
	for _, summary := range summaries {
		if summary.Status == status {
			out = append(out, summary.Date)
		}
	}
	return out
}

// DateRange returns days consecutive dates starting at from's calendar date.
func DateRange(from time.Time, days int) []time.Time {
	start := models.DateOnly(from)
	out := make([]time.Time, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, start.AddDate(0, 0, i))
	}
	return out
}
