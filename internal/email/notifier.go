package email

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Picklepoint/internal/booking"
	"github.com/codr1/Picklepoint/internal/models"
)

const defaultSendTimeout = 5 * time.Second

// Notifier emails customers about their bookings. Sends run in the
// background and failures are only logged.
type Notifier struct {
	sender    EmailSender
	venueName string
	timeout   time.Duration

	wg sync.WaitGroup
}

func NewNotifier(sender EmailSender, venueName string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Notifier{
		sender:    sender,
		venueName: venueName,
		timeout:   timeout,
	}
}

var _ booking.Notifier = (*Notifier)(nil)

func (n *Notifier) BookingConfirmed(ctx context.Context, court models.Court, b models.Booking) {
	n.dispatch(ctx, b, "confirmation", BuildConfirmationEmail(DescribeBooking(n.venueName, court, b)))
}

func (n *Notifier) BookingRescheduled(ctx context.Context, court models.Court, b models.Booking, delta booking.Delta) {
	n.dispatch(ctx, b, "reschedule", BuildRescheduleEmail(DescribeReschedule(n.venueName, court, b, delta)))
}

func (n *Notifier) BookingCancelled(ctx context.Context, court models.Court, b models.Booking) {
	n.dispatch(ctx, b, "cancellation", BuildCancellationEmail(DescribeBooking(n.venueName, court, b)))
}

// SendReminder sends a day-before reminder and waits for the result.
func (n *Notifier) SendReminder(ctx context.Context, court models.Court, b models.Booking) error {
	if n == nil {
		return errNoSender
	}
	message := BuildReminderEmail(DescribeBooking(n.venueName, court, b))
	sent, err := deliver(ctx, n.sender, b.Customer.Email, message, n.timeout)
	if err != nil {
		return err
	}
	if !sent {
		return fmt.Errorf("booking %d has no email address", b.ID)
	}
	return nil
}

// Wait blocks until background sends have finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) dispatch(ctx context.Context, b models.Booking, kind string, message Message) {
	if n == nil || n.sender == nil || strings.TrimSpace(b.Customer.Email) == "" {
		return
	}
	logger := log.Ctx(ctx).With().
		Int64("booking_id", b.ID).
		Str("email_kind", kind).
		Logger()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if _, err := deliver(detached(ctx), n.sender, b.Customer.Email, message, n.timeout); err != nil {
			logger.Error().Err(err).Msg("Failed to send booking email")
			return
		}
		logger.Debug().Msg("Booking email sent")
	}()
}
