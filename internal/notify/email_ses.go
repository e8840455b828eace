package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog"
)

// SESSender sends notification e-mail via AWS SES.
type SESSender struct {
	client    *sesv2.Client
	fromEmail string
	fromName  string
	log       zerolog.Logger
}

// NewSESSender creates an SES-backed sender, or nil when no client is
// configured, which disables e-mail dispatch.
func NewSESSender(client *sesv2.Client, fromEmail, fromName string, log zerolog.Logger) *SESSender {
	if client == nil || fromEmail == "" {
		return nil
	}
	if fromName == "" {
		fromName = "Clinivo Scheduling"
	}
	return &SESSender{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
		log:       log.With().Str("component", "ses").Logger(),
	}
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	fromAddress := fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(msg.TextBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send to %s: %w", msg.To, err)
	}

	s.log.Debug().
		Str("to", msg.To).
		Str("message_id", aws.ToString(out.MessageId)).
		Msg("email sent")

	return nil
}
