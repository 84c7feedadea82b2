package flow

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"pinrelay/internal/ports"
	"pinrelay/internal/types"
)

func (s *UnitTestSuite) TestVerify() {
	v := NewVerifier(s.clientStore)
	ctx := context.Background()

	ok, status, err := v.Verify(ctx, ClientWithPhone, OriginalPin)
	s.NoError(err)
	s.Equal(http.StatusOK, status)
	s.True(ok)

	ok, status, err = v.Verify(ctx, ClientWithPhone, "654321")
	s.NoError(err)
	s.Equal(http.StatusOK, status)
	s.False(ok)

	_, status, err = v.Verify(ctx, ClientWithPhone, "12345")
	s.True(errors.Is(err, ErrInvalidPin))
	s.Equal(http.StatusBadRequest, status)

	_, status, err = v.Verify(ctx, ClientMissing, OriginalPin)
	s.True(errors.Is(err, types.ErrNotFound))
	s.Equal(http.StatusNotFound, status)
}

func (s *UnitTestSuite) TestVerifyLockout() {
	now := time.Unix(1_700_000_000, 0)
	SetTimNowFn(func() time.Time { return now })
	defer RestoreTimeNow()

	v := NewVerifier(s.clientStore)
	ctx := context.Background()
	for i := 0; i < DefaultMaxFailures; i++ {
		ok, status, err := v.Verify(ctx, ClientWithPhone, "000000")
		s.NoError(err)
		s.Equal(http.StatusOK, status)
		s.False(ok)
		now = now.Add(time.Minute)
	}

	// locked even for the right pin
	_, status, err := v.Verify(ctx, ClientWithPhone, OriginalPin)
	s.True(errors.Is(err, ErrTooManyAttempts))
	s.Equal(http.StatusTooManyRequests, status)

	// other clients are unaffected
	_, status, _ = v.Verify(ctx, ClientWithoutPhone, OriginalPin)
	s.Equal(http.StatusOK, status)

	// window counts from the first failure
	now = time.Unix(1_700_000_000, 0).Add(DefaultLockout + time.Second)
	ok, status, err := v.Verify(ctx, ClientWithPhone, OriginalPin)
	s.NoError(err)
	s.Equal(http.StatusOK, status)
	s.True(ok)
}

func (s *UnitTestSuite) TestVerifySuccessClearsFailures() {
	v := NewVerifier(s.clientStore)
	ctx := context.Background()
	for i := 0; i < DefaultMaxFailures-1; i++ {
		_, _, _ = v.Verify(ctx, ClientWithPhone, "000000")
	}
	ok, _, err := v.Verify(ctx, ClientWithPhone, OriginalPin)
	s.NoError(err)
	s.True(ok)
	for i := 0; i < DefaultMaxFailures-1; i++ {
		_, status, _ := v.Verify(ctx, ClientWithPhone, "000000")
		s.Equal(http.StatusOK, status)
	}
}

func (s *UnitTestSuite) TestVerifyUnsetPin() {
	s.Require().NoError(s.clientStore.PutClient(context.Background(), types.Client{Key: "fresh", FullName: "Fresh"}))
	ok, status, err := NewVerifier(s.clientStore).Verify(context.Background(), "fresh", "000000")
	s.NoError(err)
	s.Equal(http.StatusOK, status)
	s.False(ok)
}

func (s *UnitTestSuite) TestVerifyConcurrentGuessesAreCapped() {
	slow := &slowReadStore{ClientStore: s.clientStore, delay: 5 * time.Millisecond}
	v := NewVerifier(slow)
	const n = 50

	var compared, locked atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, status, err := v.Verify(context.Background(), ClientWithPhone, "000001")
			switch status {
			case http.StatusOK:
				s.False(ok)
				compared.Add(1)
			case http.StatusTooManyRequests:
				s.True(errors.Is(err, ErrTooManyAttempts))
				locked.Add(1)
			default:
				s.Failf("unexpected status", "%d", status)
			}
		}()
	}
	wg.Wait()

	s.EqualValues(DefaultMaxFailures, compared.Load())
	s.EqualValues(n-DefaultMaxFailures, locked.Load())
	s.EqualValues(DefaultMaxFailures, slow.reads.Load())
}

func (s *UnitTestSuite) TestVerifyLookupFailureDoesNotCount() {
	v := NewVerifier(s.clientStore)
	for i := 0; i < 2*DefaultMaxFailures; i++ {
		_, status, _ := v.Verify(context.Background(), ClientMissing, "000000")
		s.Equal(http.StatusNotFound, status)
	}
	_, ok := v.failures.Get(ClientMissing)
	s.False(ok)
}

// slowReadStore delays every GetClient so concurrent callers overlap.
type slowReadStore struct {
	ports.ClientStore
	delay time.Duration
	reads atomic.Int32
}

func (s *slowReadStore) GetClient(ctx context.Context, clientKey string) (types.Client, error) {
	s.reads.Add(1)
	time.Sleep(s.delay)
	return s.ClientStore.GetClient(ctx, clientKey)
}
