package email

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Notifier emails incoming order summaries to the shop's orders inbox.
type Notifier struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	toEmail   string
}

func NewNotifier(apiKey, fromEmail, fromName, toEmail string) *Notifier {
	return &Notifier{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		toEmail:   toEmail,
	}
}

func (n *Notifier) Notify(ctx context.Context, text string) error {

	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail("", n.toEmail)

	message := mail.NewV3Mail()
	message.SetFrom(from)

	personalization := mail.NewPersonalization()
	personalization.AddTos(to)
	personalization.Subject = "Новый заказ"
	message.AddPersonalizations(personalization)

	message.AddContent(mail.NewContent("text/plain", text))

	response, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("failed to send email, status code: %d", response.StatusCode)
	}

	return nil
}
