package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"rental_portal/internal/adapters/observability"
	"rental_portal/internal/domain"
)

// SESService is the slice of the SES client the notifier uses.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier mails booking notices to the lettings administrator.
type SESNotifier struct {
	client SESService
	from   string
}

var _ domain.Notifier = (*SESNotifier)(nil)

func NewSES(ctx context.Context, region, from string) (*SESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	return NewWithClient(ses.NewFromConfig(cfg), from), nil
}

func NewWithClient(c SESService, from string) *SESNotifier {
	return &SESNotifier{client: c, from: from}
}

func (n *SESNotifier) NotifyBooking(ctx context.Context, adminAddress string, b domain.BookingNotice) error {
	subject, body := renderBooking(b)
	start := time.Now()
	_, err := n.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{adminAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.from),
	})
	status := 200
	if err != nil {
		status = 0
	}
	observability.ObserveExternal("ses", "send_email", status, time.Since(start))
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}

func renderBooking(b domain.BookingNotice) (subject, body string) {
	subject = fmt.Sprintf("Viewing booked: %s on %s at %s", b.PropertyAddress, b.Date, b.StartTime)

	var sb strings.Builder
	fmt.Fprintf(&sb, "A viewing slot has been booked.\n\n")
	fmt.Fprintf(&sb, "Property: %s (%s)\n", b.PropertyAddress, b.PropertyID)
	fmt.Fprintf(&sb, "When: %s %s-%s\n", b.Date, b.StartTime, b.EndTime)
	fmt.Fprintf(&sb, "Name: %s\n", b.Booker.Name)
	fmt.Fprintf(&sb, "Family size: %d\n", b.Booker.FamilySize)
	fmt.Fprintf(&sb, "Contact: %s\n", b.Booker.Contact)
	if b.Booker.HasApplication {
		sb.WriteString("Has an application: yes\n")
	} else {
		sb.WriteString("Has an application: no\n")
	}
	fmt.Fprintf(&sb, "\nSlot id: %s\n", b.SlotID)
	return subject, sb.String()
}
