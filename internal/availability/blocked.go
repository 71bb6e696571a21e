// Package availability computes which slots of a court are bookable on a
// date, given every active booking across all courts for that date.
package availability

import (
	"time"

	"github.com/codr1/Picklepoint/internal/models"
	"github.com/codr1/Picklepoint/internal/slots"
)

// Options tune a blocked-slot computation.
type Options struct {
	// ExcludeBookingID skips one booking, used when moving that booking.
	ExcludeBookingID int64
}

// ComputeBlockedSlots returns the slots of court on date that cannot be
// booked. On the current date every slot whose hour is at or before now's
// hour is blocked. A booking conflicts when it is on the same court, or when
// either its court or the target court is exclusive. The result does not
// depend on the order of dayBookings.
func ComputeBlockedSlots(court models.Court, date time.Time, dayBookings []models.Booking, now time.Time, opts Options) slots.Set {
	var blocked slots.Set

	if models.SameDate(date, now) {
		current := now.In(date.Location()).Hour()
		for hour := 0; hour <= current; hour++ {
			blocked = blocked.Add(slots.Slot(hour))
		}
	}

	dateKey := date.Format(models.DateLayout)
	targetExclusive := court.IsExclusive()
	for _, b := range dayBookings {
		if opts.ExcludeBookingID != 0 && b.ID == opts.ExcludeBookingID {
			continue
		}
		if !b.Status.Active() {
			continue
		}
		if b.DateKey() != dateKey {
			continue
		}
		if b.CourtID != court.ID && !targetExclusive && !b.IsExclusive() {
			continue
		}
		blocked = blocked.Union(slots.NewSet(b.OccupiedSlots()...))
	}

	return blocked
}
