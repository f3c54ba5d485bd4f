package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/email"
)

// EmailResolver maps a user id to their notification email address.
type EmailResolver func(ctx context.Context, userID uuid.UUID) (string, error)

// EmailNotifier delivers billing notifications by email. Template
// rendering lives elsewhere; these are plain transactional messages.
type EmailNotifier struct {
	sender  email.EmailSender
	resolve EmailResolver
}

// NewEmailNotifier creates a notifier sending through the given sender.
func NewEmailNotifier(sender email.EmailSender, resolve EmailResolver) *EmailNotifier {
	return &EmailNotifier{sender: sender, resolve: resolve}
}

var notificationSubjects = map[NotificationKind]string{
	NotifyRenewed:       "Your subscription has renewed",
	NotifyPaymentFailed: "We couldn't process your payment",
	NotifyDowngraded:    "Your plan change is complete",
	NotifyCanceled:      "Your subscription has been canceled",
}

func (n *EmailNotifier) Notify(ctx context.Context, userID uuid.UUID, kind NotificationKind) error {
	addr, err := n.resolve(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve notification address: %w", err)
	}

	subject, ok := notificationSubjects[kind]
	if !ok {
		subject = string(kind)
	}

	return n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   addr,
		Subject:  subject,
		BodyHTML: fmt.Sprintf("<p>%s.</p>", subject),
		Tag:      string(kind),
	})
}

// NoopNotifier discards notifications. Used when no email channel is
// configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, userID uuid.UUID, kind NotificationKind) error {
	return nil
}
