package pub

import (
	"context"
	"errors"
	"strings"

	"pinrelay/internal/config"
	"pinrelay/internal/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// PublishAPI is the subset of *sns.Client used to send SMS.
type PublishAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMS delivers messages as direct-to-phone SNS publishes.
type SMS struct {
	cli      PublishAPI
	senderID string
	limiter  *rate.Limiter
}

// NewSMS returns an SMS messenger. rpm caps publishes per minute across the process, 0 for no limit.
func NewSMS(cli PublishAPI, senderID string, rpm int) *SMS {
	s := &SMS{cli: cli, senderID: senderID}
	if rpm > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60), 1)
	}
	return s
}

// NewSMSFromSettings builds the SNS client from the default AWS chain.
// A non-empty SNSEndpoint targets a local emulator.
func NewSMSFromSettings(ctx context.Context, s config.Settings) (*SMS, error) {
	awsCfg, err := config.LoadAWS(ctx, s.AWSRegion)
	if err != nil {
		return nil, err
	}
	cli := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if s.SNSEndpoint != "" {
			o.BaseEndpoint = aws.String(s.SNSEndpoint)
			o.Credentials = config.LocalCredentials()
		}
	})
	return NewSMS(cli, s.SNSSenderID, s.SNSRPM), nil
}

func (s *SMS) Send(ctx context.Context, address, text string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return ErrNoAddress
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return errors.Join(ErrSendFailed, err)
		}
	}
	in := &sns.PublishInput{
		PhoneNumber: aws.String(address),
		Message:     aws.String(text),
		MessageAttributes: map[string]snsTypes.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	}
	if s.senderID != "" {
		in.MessageAttributes["AWS.SNS.SMS.SenderID"] = snsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}
	out, err := s.cli.Publish(ctx, in)
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	log.WithFields(log.Fields{
		"to":        types.MaskPhone(address),
		"messageId": aws.ToString(out.MessageId),
	}).Debug("sms published")
	return nil
}

// Status reports the SNS channel as connected; publish failures surface per Send.
func (s *SMS) Status(context.Context) types.ChannelStatus {
	return types.ChannelStatus{Connected: true, Running: true}
}
