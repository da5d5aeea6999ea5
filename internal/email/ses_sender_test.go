package email_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quoteajob/quoteajob/internal/email"
)

type MockSES struct {
	mock.Mock
}

func (m *MockSES) SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ses.SendRawEmailOutput), args.Error(1)
}

func TestSESSender(t *testing.T) {
	client := new(MockSES)
	raw := email.Compose("noreply@quoteajob.com", []string{"olive@example.com"}, "New quote on Fix sink", "body")
	client.On("SendRawEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendRawEmailInput) bool {
		return aws.ToString(in.Source) == "noreply@quoteajob.com" &&
			len(in.Destinations) == 1 && in.Destinations[0] == "olive@example.com" &&
			string(in.RawMessage.Data) == string(raw)
	})).Return(&ses.SendRawEmailOutput{MessageId: aws.String("m-1")}, nil)

	s := email.NewSESSenderWithClient(client, "noreply@quoteajob.com", zaptest.NewLogger(t))
	require.NoError(t, s.Send(context.Background(), []string{"olive@example.com"}, "New quote on Fix sink", raw))
	client.AssertExpectations(t)
}

func TestSESSender_Error(t *testing.T) {
	client := new(MockSES)
	client.On("SendRawEmail", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	s := email.NewSESSenderWithClient(client, "noreply@quoteajob.com", zaptest.NewLogger(t))
	err := s.Send(context.Background(), []string{"a@b.com"}, "s", []byte("x"))
	assert.ErrorContains(t, err, "throttled")
}
