package pub

import (
	"context"
	"errors"
	"testing"
	"time"

	"pinrelay/internal/config"
	"pinrelay/internal/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/suite"
)

type fakePublisher struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

type PubTestSuite struct {
	suite.Suite
}

func TestPubTestSuite(t *testing.T) {
	suite.Run(t, new(PubTestSuite))
}

func (s *PubTestSuite) TestSMSSend() {
	f := &fakePublisher{}
	m := NewSMS(f, "PINRELAY", 0)

	s.NoError(m.Send(context.Background(), " +966512345678 ", "hello"))
	s.Require().Len(f.inputs, 1)
	in := f.inputs[0]
	s.Equal("+966512345678", aws.ToString(in.PhoneNumber))
	s.Equal("hello", aws.ToString(in.Message))
	s.Nil(in.TopicArn)
	s.Equal("PINRELAY", aws.ToString(in.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
	s.Equal("Transactional", aws.ToString(in.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))
}

func (s *PubTestSuite) TestSMSNoSenderID() {
	f := &fakePublisher{}
	s.NoError(NewSMS(f, "", 0).Send(context.Background(), "+15550001111", "x"))
	_, ok := f.inputs[0].MessageAttributes["AWS.SNS.SMS.SenderID"]
	s.False(ok)
}

func (s *PubTestSuite) TestSMSErrors() {
	f := &fakePublisher{err: errors.New("opted out")}
	m := NewSMS(f, "", 0)

	err := m.Send(context.Background(), "+15550001111", "x")
	s.True(errors.Is(err, ErrSendFailed))

	err = m.Send(context.Background(), "   ", "x")
	s.True(errors.Is(err, ErrNoAddress))
	s.Len(f.inputs, 1)
}

func (s *PubTestSuite) TestSMSThrottleHonorsContext() {
	f := &fakePublisher{}
	m := NewSMS(f, "", 1)
	s.NoError(m.Send(context.Background(), "+15550001111", "first"))

	// the next token is a minute away
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Send(ctx, "+15550001111", "second")
	s.True(errors.Is(err, ErrSendFailed))
	s.Len(f.inputs, 1)
}

func (s *PubTestSuite) TestOffline() {
	o := NewOffline()
	s.True(errors.Is(o.Send(context.Background(), "+15550001111", "x"), types.ErrChannelNotConnected))
	st := o.Status(context.Background())
	s.False(st.Connected)
	s.True(st.Running)
}

func (s *PubTestSuite) TestGate() {
	f := &fakePublisher{}
	g := NewGate(NewSMS(f, "", 0))
	ctx := context.Background()

	s.True(g.Running())
	s.True(g.Status(ctx).Running)
	s.NoError(g.Send(ctx, "+15550001111", "x"))

	g.Stop()
	g.Stop()
	s.False(g.Running())
	st := g.Status(ctx)
	s.True(st.Connected)
	s.False(st.Running)
	s.True(errors.Is(g.Send(ctx, "+15550001111", "x"), ErrChannelPaused))
	s.Len(f.inputs, 1)

	g.Start()
	s.True(g.Status(ctx).Running)
	s.NoError(g.Send(ctx, "+15550001111", "x"))
	s.Len(f.inputs, 2)
}

func (s *PubTestSuite) TestOpenOffline() {
	g, err := Open(context.Background(), config.Settings{ChannelBackend: config.ChannelOffline})
	s.NoError(err)
	s.False(g.Status(context.Background()).Connected)
	s.True(errors.Is(g.Send(context.Background(), "+15550001111", "x"), types.ErrChannelNotConnected))
}
