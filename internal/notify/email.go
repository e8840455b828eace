package notify

import "context"

// EmailMessage is a rendered notification ready for delivery.
type EmailMessage struct {
	To       string
	Subject  string
	TextBody string
}

// EmailSender delivers a single message. Delivery semantics (retries,
// bounces) are the sender's problem; the dispatcher only promises to hand
// each transition over at most once.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}
