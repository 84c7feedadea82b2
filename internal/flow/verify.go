package flow

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"pinrelay/internal/pin"
	"pinrelay/internal/ports"
	"pinrelay/internal/types"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultMaxFailures = 5
	DefaultLockout     = 15 * time.Minute
)

// Verifier checks a candidate PIN against the stored one. After MaxFailures wrong PINs within
// Lockout of the first failure, the client is locked out until that window ends, even for a correct PIN.
// Failure counts live in process memory.
type Verifier struct {
	Clients     ports.ClientStore
	MaxFailures int
	Lockout     time.Duration

	mu       sync.Mutex
	failures *TTL[string, int]
}

func NewVerifier(clients ports.ClientStore) *Verifier {
	return &Verifier{
		Clients:     clients,
		MaxFailures: DefaultMaxFailures,
		Lockout:     DefaultLockout,
		failures:    NewTTL[string, int](),
	}
}

// Verify returns whether candidate is the client's current PIN.
// Every attempt reserves a failure slot before the store is read and gives it back when the
// comparison does not happen, so concurrent guesses cannot exceed MaxFailures.
func (v *Verifier) Verify(ctx context.Context, clientKey, candidate string) (valid bool, statusCode int, err error) {
	if !pin.Valid(candidate) {
		return false, http.StatusBadRequest, ErrInvalidPin
	}
	n, ok := v.reserve(clientKey)
	if !ok {
		return false, http.StatusTooManyRequests, ErrTooManyAttempts
	}

	client, err := v.Clients.GetClient(ctx, clientKey)
	if err != nil {
		v.release(clientKey)
		if errors.Is(err, types.ErrNotFound) {
			return false, http.StatusNotFound, err
		}
		log.WithError(err).WithField("clientKey", clientKey).Error("pin verify: client lookup failed")
		return false, http.StatusInternalServerError, err
	}

	if pin.Matches(client.Pin, candidate) {
		v.mu.Lock()
		v.failures.Delete(clientKey)
		v.mu.Unlock()
		return true, http.StatusOK, nil
	}

	log.WithFields(log.Fields{
		"clientKey": clientKey,
		"failures":  n,
	}).Info("pin verify failed")
	return false, http.StatusOK, nil
}

// reserve counts an attempt against clientKey unless MaxFailures is already reached.
// The window expiry is set by the first attempt and kept by later ones.
func (v *Verifier) reserve(clientKey string) (int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	n, exp, ok := v.failures.GetWithExpiry(clientKey)
	if !ok {
		v.failures.Set(clientKey, 1, v.Lockout)
		return 1, true
	}
	if n >= v.MaxFailures {
		return n, false
	}
	v.failures.SetUntil(clientKey, n+1, exp)
	return n + 1, true
}

// release gives back a slot taken by reserve.
func (v *Verifier) release(clientKey string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	n, exp, ok := v.failures.GetWithExpiry(clientKey)
	switch {
	case !ok:
	case n <= 1:
		v.failures.Delete(clientKey)
	default:
		v.failures.SetUntil(clientKey, n-1, exp)
	}
}
