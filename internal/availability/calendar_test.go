package availability

import (
	"reflect"
	"testing"
	"time"

	"github.com/codr1/Picklepoint/internal/models"
	"github.com/codr1/Picklepoint/internal/slots"
)

func TestClassifyDates(t *testing.T) {
	court := models.Court{ID: 1}
	now := day(2026, 1, 20)
	dates := DateRange(day(2026, 2, 1), 3)

	bookingsByDate := map[string][]models.Booking{
		"2026-02-01": {booking(1, 1, "", day(2026, 2, 1), slots.All()...)},
		"2026-02-02": {booking(2, 1, "", day(2026, 2, 2), 10, 11)},
	}

	summaries := ClassifyDates(court, dates, bookingsByDate, now)
	want := []DateSummary{
		{Date: "2026-02-01", Status: DateFullyBooked, BlockedCount: 24},
		{Date: "2026-02-02", Status: DatePartiallyBooked, BlockedCount: 2},
		{Date: "2026-02-03", Status: DateAvailable, BlockedCount: 0},
	}
	if !reflect.DeepEqual(summaries, want) {
		t.Fatalf("ClassifyDates() = %+v, want %+v", summaries, want)
	}

	if got := FullyBookedDates(summaries); !reflect.DeepEqual(got, []string{"2026-02-01"}) {
		t.Errorf("FullyBookedDates() = %v", got)
	}
	if got := PartiallyBookedDates(summaries); !reflect.DeepEqual(got, []string{"2026-02-02"}) {
		t.Errorf("PartiallyBookedDates() = %v", got)
	}
}

func TestClassifyDates_ExclusiveCourtOnAnotherCourt(t *testing.T) {
	now := day(2026, 1, 20)
	date := day(2026, 2, 5)
	bookingsByDate := map[string][]models.Booking{
		"2026-02-05": {booking(1, 7, "Whole", date, slots.All()...)},
	}

	summaries := ClassifyDates(models.Court{ID: 2}, []time.Time{date}, bookingsByDate, now)
	if summaries[0].Status != DateFullyBooked {
		t.Fatalf("status = %s, want fully-booked", summaries[0].Status)
	}
}

func TestDateRange(t *testing.T) {
	dates := DateRange(day(2026, 2, 27), 3)
	got := []string{}
	for _, d := range dates {
		got = append(got, d.Format(models.DateLayout))
	}
	want := []string{"2026-02-27", "2026-02-28", "2026-03-01"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DateRange() = %v, want %v", got, want)
	}
}
