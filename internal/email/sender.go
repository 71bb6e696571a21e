package email

import (
	"context"
	"errors"
	"strings"
	"time"
)

var errNoSender = errors.New("email sender not configured")

// EmailSender delivers one plain-text message. SESClient is the production
// implementation.
type EmailSender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// deliver sends message to recipient, giving the sender at most timeout.
// An empty recipient is skipped and reported as not sent.
func deliver(ctx context.Context, sender EmailSender, recipient string, message Message, timeout time.Duration) (bool, error) {
	if sender == nil {
		return false, errNoSender
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return false, nil
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return true, sender.Send(sendCtx, recipient, message.Subject, message.Body)
}

// detached keeps ctx values such as the request logger but drops its
// cancellation, so a finished HTTP request does not abort a queued send.
func detached(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
