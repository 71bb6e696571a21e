package email

import (
	"fmt"
	"strings"
	"time"

	"github.com/codr1/Picklepoint/internal/booking"
	"github.com/codr1/Picklepoint/internal/models"
	"github.com/codr1/Picklepoint/internal/slots"
)

const dateFormat = "Monday, Jan 2, 2006"

type Message struct {
	Subject string
	Body    string
}

// BookingDetails is the customer-facing summary of one booking.
type BookingDetails struct {
	VenueName string
	Customer  string
	CourtName string
	Date      string
	Times     string
	// NextDayNote is set when the last slot ends after midnight.
	NextDayNote string
	Total       string
}

// DescribeBooking formats a booking for messages.
func DescribeBooking(venueName string, court models.Court, b models.Booking) BookingDetails {
	courtName := strings.TrimSpace(b.CourtName)
	if courtName == "" {
		courtName = strings.TrimSpace(court.Name)
	}
	return BookingDetails{
		VenueName:   venueName,
		Customer:    strings.TrimSpace(b.Customer.Name),
		CourtName:   courtName,
		Date:        b.BookingDate.Format(dateFormat),
		Times:       FormatSlots(b.OccupiedSlots()),
		NextDayNote: nextDayNote(b.BookingDate, b.OccupiedSlots()),
		Total:       FormatPeso(b.TotalCents),
	}
}

// FormatSlots lists each slot's 12-hour range, separated by commas.
func FormatSlots(list []slots.Slot) string {
	if len(list) == 0 {
		return "TBD"
	}
	labels := make([]string, 0, len(list))
	for _, slot := range slots.Normalize(list) {
		labels = append(labels, slot.Label())
	}
	return strings.Join(labels, ", ")
}

func nextDayNote(date time.Time, list []slots.Slot) string {
	for _, slot := range list {
		if slot.EndsNextDay() {
			return fmt.Sprintf("The 11:00PM slot ends on %s.", date.AddDate(0, 0, 1).Format(dateFormat))
		}
	}
	return ""
}

// FormatPeso renders centavos as "₱1,300.00".
func FormatPeso(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := fmt.Sprintf("%d", cents/100)
	var b strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	return fmt.Sprintf("%s₱%s.%02d", sign, b.String(), cents%100)
}

func venueOrDefault(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "the venue"
	}
	return name
}

func BuildConfirmationEmail(details BookingDetails) Message {
	venue := venueOrDefault(details.VenueName)
	lines := []string{
		fmt.Sprintf("Hi %s, your court booking is confirmed.", details.Customer),
		"",
		fmt.Sprintf("Venue: %s", venue),
		fmt.Sprintf("Court: %s", details.CourtName),
		fmt.Sprintf("Date: %s", details.Date),
		fmt.Sprintf("Time: %s", details.Times),
	}
	if details.NextDayNote != "" {
		lines = append(lines, details.NextDayNote)
	}
	lines = append(lines, fmt.Sprintf("Total: %s", details.Total))

	return Message{
		Subject: fmt.Sprintf("Booking Confirmed - %s", venue),
		Body:    strings.Join(lines, "\n"),
	}
}

// RescheduleDetails pairs the booking before and after a reschedule.
type RescheduleDetails struct {
	Original BookingDetails
	Updated  BookingDetails
	Reason   string
	Delta    booking.Delta
}

// DescribeReschedule builds reschedule details from the saved booking and
// its reschedule record.
func DescribeReschedule(venueName string, court models.Court, b models.Booking, delta booking.Delta) RescheduleDetails {
	updated := DescribeBooking(venueName, court, b)
	original := updated
	reason := ""
	if from := b.RescheduledFrom; from != nil {
		prior := b
		prior.BookingDate = from.OriginalDate.In(b.BookingDate.Location())
		prior.BookedTimes = from.OriginalBookedTimes
		prior.StartHour = from.OriginalStartHour
		prior.EndHour = from.OriginalEndHour
		prior.TotalCents = from.OriginalTotalCents
		original = DescribeBooking(venueName, court, prior)
		reason = from.Reason
	}
	return RescheduleDetails{
		Original: original,
		Updated:  updated,
		Reason:   reason,
		Delta:    delta,
	}
}

func BuildRescheduleEmail(details RescheduleDetails) Message {
	venue := venueOrDefault(details.Updated.VenueName)
	lines := []string{
		fmt.Sprintf("Hi %s, your %s booking has been rescheduled.", details.Updated.Customer, details.Updated.CourtName),
		"",
	}
	if reason := strings.TrimSpace(details.Reason); reason != "" {
		lines = append(lines, fmt.Sprintf("Reason: %s", reason))
	}
	lines = append(lines,
		fmt.Sprintf("Original: %s (%s)", details.Original.Date, details.Original.Times),
		fmt.Sprintf("New: %s (%s)", details.Updated.Date, details.Updated.Times),
	)
	if details.Updated.NextDayNote != "" {
		lines = append(lines, details.Updated.NextDayNote)
	}
	lines = append(lines, fmt.Sprintf("New total: %s", details.Updated.Total))

	switch details.Delta.Kind {
	case booking.DeltaRefund:
		lines = append(lines, fmt.Sprintf("Refund due to you: %s", FormatPeso(details.Delta.Magnitude())))
	case booking.DeltaAdditionalPayment:
		lines = append(lines, fmt.Sprintf("Additional payment due: %s", FormatPeso(details.Delta.Magnitude())))
	}
	lines = append(lines, "", fmt.Sprintf("Questions? Contact %s.", venue))

	return Message{
		Subject: fmt.Sprintf("Booking Rescheduled - %s", venue),
		Body:    strings.Join(lines, "\n"),
	}
}

// BuildRescheduleText is the short form of the reschedule notice for staff
// to send by SMS.
func BuildRescheduleText(details RescheduleDetails) string {
	reason := strings.TrimSpace(details.Reason)
	if reason == "" {
		reason = "unexpected circumstances"
	}
	return fmt.Sprintf("Good day, %s! Due to %s, we need to reschedule your %s booking from %s (%s) to %s (%s). Total: %s. Questions? Contact us. - %s",
		details.Updated.Customer,
		reason,
		details.Updated.CourtName,
		details.Original.Date,
		details.Original.Times,
		details.Updated.Date,
		details.Updated.Times,
		details.Updated.Total,
		venueOrDefault(details.Updated.VenueName),
	)
}

func BuildCancellationEmail(details BookingDetails) Message {
	venue := venueOrDefault(details.VenueName)
	lines := []string{
		fmt.Sprintf("Hi %s, your court booking has been cancelled.", details.Customer),
		"",
		fmt.Sprintf("Venue: %s", venue),
		fmt.Sprintf("Court: %s", details.CourtName),
		fmt.Sprintf("Date: %s", details.Date),
		fmt.Sprintf("Time: %s", details.Times),
	}
	return Message{
		Subject: fmt.Sprintf("Booking Cancelled - %s", venue),
		Body:    strings.Join(lines, "\n"),
	}
}

func BuildReminderEmail(details BookingDetails) Message {
	venue := venueOrDefault(details.VenueName)
	lines := []string{
		fmt.Sprintf("Reminder: your court booking at %s is tomorrow.", venue),
		"",
		fmt.Sprintf("Court: %s", details.CourtName),
		fmt.Sprintf("Date: %s", details.Date),
		fmt.Sprintf("Time: %s", details.Times),
	}
	if details.NextDayNote != "" {
		lines = append(lines, details.NextDayNote)
	}
	return Message{
		Subject: fmt.Sprintf("Upcoming Booking Reminder - %s", venue),
		Body:    strings.Join(lines, "\n"),
	}
}
