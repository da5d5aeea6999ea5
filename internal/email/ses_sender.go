package email

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"
)

// SESSettings selects the region and, optionally, static credentials for SES.
type SESSettings struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	From            string
}

// SESAPI is the part of *ses.Client used to deliver mail.
type SESAPI interface {
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

// SESSender delivers the composed message through Amazon SES.
type SESSender struct {
	client SESAPI
	from   string
	logger *zap.Logger
}

// NewSESSender loads the AWS configuration and returns an SES backed sender.
func NewSESSender(ctx context.Context, s SESSettings, logger *zap.Logger) (*SESSender, error) {
	opts := []func(*aws_config.LoadOptions) error{aws_config.WithRegion(s.Region)}
	if s.AccessKeyID != "" {
		opts = append(opts, aws_config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, ""),
		))
	}
	cfg, err := aws_config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for SES: %w", err)
	}
	return NewSESSenderWithClient(ses.NewFromConfig(cfg), s.From, logger), nil
}

func NewSESSenderWithClient(client SESAPI, from string, logger *zap.Logger) *SESSender {
	return &SESSender{client: client, from: from, logger: logger}
}

func (s *SESSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	out, err := s.client.SendRawEmail(ctx, &ses.SendRawEmailInput{
		Source:       aws.String(s.from),
		Destinations: to,
		RawMessage:   &types.RawMessage{Data: rawMessage},
	})
	if err != nil {
		return fmt.Errorf("ses error: %w", err)
	}
	s.logger.Info("email sent",
		zap.Strings("to", to),
		zap.String("subject", subject),
		zap.String("message_id", aws.ToString(out.MessageId)),
	)
	return nil
}
