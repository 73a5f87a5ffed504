package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/GlebRadaev/partnerpay/internal/domain"
)

type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type EmailChannel struct {
	client mailClient
	from   *mail.Email
}

func NewEmailChannel(apiKey, fromEmail, fromName string) *EmailChannel {
	return &EmailChannel{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromEmail),
	}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, notice domain.LifecycleNotice) error {
	if notice.Partner.Email == "" {
		return fmt.Errorf("partner %s has no email address", notice.Partner.ID)
	}

	resp, err := c.client.SendWithContext(ctx, buildEmail(c.from, notice))
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid responded %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func buildEmail(from *mail.Email, notice domain.LifecycleNotice) *mail.SGMailV3 {
	to := mail.NewEmail(notice.Partner.Name, notice.Partner.Email)
	subject, headline := describe(notice)

	p := notice.Payout
	lines := []string{
		headline,
		"",
		"Payout: " + p.ID,
		"Requested: " + FormatAmount(p.GrossAmount, p.Currency),
		"Platform fee: " + FormatAmount(p.PlatformFee, p.Currency),
		"Gateway fee: " + FormatAmount(p.GatewayFee, p.Currency),
		"You receive: " + FormatAmount(p.NetAmount, p.Currency),
	}
	if reason := notice.Extra["reason"]; reason != "" {
		lines = append(lines, "Reason: "+reason)
	}
	if p.EstimatedArrival != nil {
		lines = append(lines, "Estimated arrival: "+p.EstimatedArrival.Format("2006-01-02"))
	}

	plain := strings.Join(lines, "\n")
	html := "<p>" + strings.Join(lines, "<br>") + "</p>"

	return mail.NewSingleEmail(from, subject, to, plain, html)
}

func describe(notice domain.LifecycleNotice) (subject, headline string) {
	amount := FormatAmount(notice.Payout.NetAmount, notice.Payout.Currency)
	switch notice.Status {
	case domain.PayoutPending:
		return "Payout requested", "We received your payout request for " + amount + "."
	case domain.PayoutProcessing:
		return "Payout processing", "Your payout of " + amount + " is being processed."
	case domain.PayoutCompleted:
		return "Payout completed", "Your payout of " + amount + " has been sent."
	case domain.PayoutFailed:
		return "Payout failed", "Your payout of " + amount + " could not be completed."
	case domain.PayoutCancelled:
		return "Payout cancelled", "Your payout of " + amount + " was cancelled."
	}
	return "Payout update", "Your payout of " + amount + " changed status to " + string(notice.Status) + "."
}

// FormatAmount renders minor units as "98.75 USD".
func FormatAmount(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, strings.ToUpper(currency))
}
