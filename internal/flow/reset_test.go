package flow

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"sync"
	"time"

	"pinrelay/internal/backends/memory"
	"pinrelay/internal/pin"
	"pinrelay/internal/ports"
	"pinrelay/internal/pub"
	"pinrelay/internal/types"
)

var sixDigits = regexp.MustCompile(`^\d{6}$`)

func (s *UnitTestSuite) TestResetDelivered() {
	res, status, err := s.resetter.Run(context.Background(), ClientWithPhone)
	s.NoError(err)
	s.Equal(http.StatusOK, status)
	s.Equal(Delivered, res.Outcome)
	s.Equal("Fatima", res.ClientName)
	s.Empty(res.Pin, "delivered resets must not disclose the pin")
	s.Empty(res.Warning)
	s.EqualValues(2, res.Version)

	stored := s.storedPin(ClientWithPhone)
	s.NotEqual(OriginalPin, stored)
	s.Regexp(sixDigits, stored)

	sent := s.channel.sends()
	s.Require().Len(sent, 1)
	s.Equal("+966512345678", sent[0].address)
	s.Contains(sent[0].text, stored)
	s.Contains(sent[0].text, "Fatima")
	s.Equal(1, s.observer.resets[Delivered])
	s.Equal(1, s.observer.delivered)
}

func (s *UnitTestSuite) TestResetFallbackWhenDisconnected() {
	s.channel.connected = false
	res, status, err := s.resetter.Run(context.Background(), ClientWithPhone)
	s.NoError(err)
	s.Equal(http.StatusOK, status)
	s.Equal(DeliveredWarningFallback, res.Outcome)
	s.Regexp(sixDigits, res.Pin)
	s.Equal(s.resetter.Messages.ChannelUnavailable, res.Warning)
	s.True(errors.Is(res.Reason, types.ErrChannelNotConnected))
	s.Equal(res.Pin, s.storedPin(ClientWithPhone))
	s.Empty(s.channel.sends())
	s.Equal(1, s.observer.undelivered)
}

func (s *UnitTestSuite) TestResetFallbackWithOfflineChannel() {
	s.resetter.Channel = pub.NewGate(pub.NewOffline())
	res, status, err := s.resetter.Run(context.Background(), ClientWithPhone)
	s.NoError(err)
	s.Equal(http.StatusOK, status)
	s.Equal(DeliveredWarningFallback, res.Outcome)
	s.True(errors.Is(res.Reason, types.ErrChannelNotConnected))
	s.Equal(res.Pin, s.storedPin(ClientWithPhone))
}

func (s *UnitTestSuite) TestResetFallbackOnSendError() {
	s.channel.sendErr = errors.New("number not on whatsapp")
	res, status, err := s.resetter.Run(context.Background(), ClientWithPhone)
	s.NoError(err)
	s.Equal(http.StatusOK, status)
	s.Equal(DeliveredWarningFallback, res.Outcome)
	s.Equal(res.Pin, s.storedPin(ClientWithPhone))
	s.EqualError(res.Reason, "number not on whatsapp")
}

func (s *UnitTestSuite) TestResetFallbackOnTimeout() {
	s.channel.hang = true
	s.resetter.DeliveryTimeout = 50 * time.Millisecond

	started := time.Now()
	res, status, err := s.resetter.Run(context.Background(), ClientWithPhone)
	s.NoError(err)
	s.Less(time.Since(started), 2*time.Second)
	s.Equal(http.StatusOK, status)
	s.Equal(DeliveredWarningFallback, res.Outcome)
	s.True(errors.Is(res.Reason, ErrDeliveryTimeout))
	s.Equal(res.Pin, s.storedPin(ClientWithPhone))
}

func (s *UnitTestSuite) TestResetDeliveryIgnoresCallerCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	gen := func() (string, error) {
		cancel()
		return "024680", nil
	}
	s.resetter.Generate = gen
	res, _, err := s.resetter.Run(ctx, ClientWithPhone)
	s.NoError(err)
	s.Equal(Delivered, res.Outcome)
	s.Equal("024680", s.storedPin(ClientWithPhone))
}

func (s *UnitTestSuite) TestResetRejectedWithoutPhone() {
	called := false
	s.resetter.Generate = func() (string, error) {
		called = true
		return pin.Generate()
	}
	res, status, err := s.resetter.Run(context.Background(), ClientWithoutPhone)
	s.True(errors.Is(err, ErrPhoneRequired))
	s.Equal(http.StatusBadRequest, status)
	s.Equal(Rejected, res.Outcome)
	s.Equal("Rawan", res.ClientName)
	s.Empty(res.Pin)
	s.False(called, "no pin must be generated for a rejected reset")
	s.Equal(OriginalPin, s.storedPin(ClientWithoutPhone))
	s.Empty(s.channel.sends())
}

func (s *UnitTestSuite) TestResetNotFound() {
	res, status, err := s.resetter.Run(context.Background(), ClientMissing)
	s.True(errors.Is(err, types.ErrNotFound))
	s.Equal(http.StatusNotFound, status)
	s.Equal(NotFound, res.Outcome)
	s.Equal(1, s.observer.resets[NotFound])
}

func (s *UnitTestSuite) TestResetGeneratorFailure() {
	s.resetter.Generate = func() (string, error) { return "", pin.ErrEntropyUnavailable }
	res, status, err := s.resetter.Run(context.Background(), ClientWithPhone)
	s.True(errors.Is(err, pin.ErrEntropyUnavailable))
	s.Equal(http.StatusInternalServerError, status)
	s.Equal(InternalError, res.Outcome)
	s.Empty(res.Pin)
	s.Equal(OriginalPin, s.storedPin(ClientWithPhone))
	s.Empty(s.channel.sends())
}

func (s *UnitTestSuite) TestResetPersistFailure() {
	s.resetter.Clients = &failingUpdateStore{ClientStore: s.clientStore}
	s.channel.connected = false
	res, status, err := s.resetter.Run(context.Background(), ClientWithPhone)
	s.True(errors.Is(err, types.ErrDataStoreAccess))
	s.Equal(http.StatusInternalServerError, status)
	s.Equal(InternalError, res.Outcome)
	s.Empty(res.Pin, "a pin that was not persisted must never be disclosed")
	s.Empty(s.channel.sends())
}

func (s *UnitTestSuite) TestResetThrottled() {
	limiter := memory.NewRateLimiter()
	limiter.WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) })
	s.resetter.Limiter = limiter
	s.resetter.ResetRPM = 2
	for i := 0; i < 2; i++ {
		_, status, err := s.resetter.Run(context.Background(), ClientWithPhone)
		s.NoError(err)
		s.Equal(http.StatusOK, status)
	}
	before := s.storedPin(ClientWithPhone)
	res, status, err := s.resetter.Run(context.Background(), ClientWithPhone)
	s.True(errors.Is(err, ErrThrottled))
	s.Equal(http.StatusTooManyRequests, status)
	s.Equal(Throttled, res.Outcome)
	s.Equal(before, s.storedPin(ClientWithPhone))

	// rejection still wins over throttling
	_, status, _ = s.resetter.Run(context.Background(), ClientWithoutPhone)
	s.Equal(http.StatusBadRequest, status)
}

func (s *UnitTestSuite) TestResetSequentialDisclosesStoredPin() {
	s.channel.connected = false
	pins := map[string]bool{}
	for i := 0; i < 3; i++ {
		res, _, err := s.resetter.Run(context.Background(), ClientWithPhone)
		s.NoError(err)
		s.Equal(res.Pin, s.storedPin(ClientWithPhone))
		pins[res.Pin] = true
	}
	s.GreaterOrEqual(len(pins), 2)
}

func (s *UnitTestSuite) TestResetConcurrent() {
	s.channel.connected = false
	const n = 32
	results := make([]ResetResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, status, err := s.resetter.Run(context.Background(), ClientWithPhone)
			s.NoError(err)
			s.Equal(http.StatusOK, status)
			results[i] = res
		}(i)
	}
	wg.Wait()

	last := results[0]
	for _, r := range results {
		s.Regexp(sixDigits, r.Pin)
		if r.Version > last.Version {
			last = r
		}
	}
	stored, err := s.clientStore.GetClient(context.Background(), ClientWithPhone)
	s.NoError(err)
	s.Equal(last.Pin, stored.Pin)
	s.Equal(last.Version, stored.PinVersion)
	s.EqualValues(n+1, stored.PinVersion)
}

// failingUpdateStore reads from the wrapped store but cannot write PINs.
type failingUpdateStore struct {
	ports.ClientStore
}

func (f *failingUpdateStore) UpdatePin(context.Context, string, string) (int64, error) {
	return 0, types.Err(types.ErrDataStoreAccess, errors.New("connection reset"), "update pin")
}
