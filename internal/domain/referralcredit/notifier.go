package referralcredit

import (
	"context"
	"fmt"

	"github.com/crowdlend/crowdlend-api/internal/pkg/email"
)

// TemplateSender renders and sends a named email template
type TemplateSender interface {
	SendTemplate(ctx context.Context, to, toName, templateName, subject string, data interface{}) error
}

// EmailNotifier emails expiry warnings. Users without an email address are skipped.
type EmailNotifier struct {
	sender TemplateSender
}

func NewEmailNotifier(sender TemplateSender) *EmailNotifier {
	return &EmailNotifier{sender: sender}
}

type expiringLine struct {
	Amount    string
	ExpiresOn string
}

func (n *EmailNotifier) NotifyExpiring(ctx context.Context, notif Notification) error {
	if notif.Email == "" {
		return nil
	}

	name := notif.FullName
	if name == "" {
		name = notif.Email
	}
	lines := make([]expiringLine, 0, len(notif.Credits))
	for _, c := range notif.Credits {
		lines = append(lines, expiringLine{
			Amount:    c.RemainingAmount.StringFixed(2),
			ExpiresOn: c.ExpiryDate.Format("2 Jan 2006"),
		})
	}

	subject := fmt.Sprintf("%s of your referral credits expire soon", notif.TotalExpiring.StringFixed(2))
	return n.sender.SendTemplate(ctx, notif.Email, notif.FullName, email.TemplateCreditsExpiring, subject, map[string]interface{}{
		"Name":           name,
		"Total":          notif.TotalExpiring.StringFixed(2),
		"EarliestExpiry": notif.EarliestExpiry.Format("2 Jan 2006"),
		"Credits":        lines,
	})
}
