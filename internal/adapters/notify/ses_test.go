package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental_portal/internal/adapters/notify"
	"rental_portal/internal/domain"
)

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

func notice() domain.BookingNotice {
	return domain.BookingNotice{
		SlotID:          "s-1",
		PropertyID:      "prop-1",
		PropertyAddress: "12 Harbour Road",
		Date:            "2025-03-01",
		StartTime:       "09:00",
		EndTime:         "09:10",
		Booker:          domain.Booker{Name: "Ana", FamilySize: 3, Contact: "555-0100", HasApplication: true},
	}
}

func TestNotifyBooking_SendsPlainTextNotice(t *testing.T) {
	var got *ses.SendEmailInput
	mock := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			got = params
			return &ses.SendEmailOutput{MessageId: aws.String("m-1")}, nil
		},
	}
	n := notify.NewWithClient(mock, "noreply@example.com")

	require.NoError(t, n.NotifyBooking(context.Background(), "lettings@example.com", notice()))
	require.NotNil(t, got)
	assert.Equal(t, []string{"lettings@example.com"}, got.Destination.ToAddresses)
	assert.Equal(t, "noreply@example.com", aws.ToString(got.Source))
	assert.Contains(t, aws.ToString(got.Message.Subject.Data), "12 Harbour Road")
	body := aws.ToString(got.Message.Body.Text.Data)
	assert.Contains(t, body, "2025-03-01 09:00-09:10")
	assert.Contains(t, body, "Family size: 3")
	assert.Contains(t, body, "Has an application: yes")
}

func TestNotifyBooking_WrapsSendError(t *testing.T) {
	mock := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("SES service unavailable")
		},
	}
	n := notify.NewWithClient(mock, "noreply@example.com")

	err := n.NotifyBooking(context.Background(), "lettings@example.com", notice())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SES service unavailable")
}
