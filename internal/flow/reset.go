package flow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"pinrelay/internal/pin"
	"pinrelay/internal/ports"
	"pinrelay/internal/types"

	log "github.com/sirupsen/logrus"
)

const DefaultDeliveryTimeout = 10 * time.Second

// Observer receives reset outcomes and delivery timings. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveReset(outcome Outcome)
	ObserveDelivery(delivered bool, elapsed time.Duration)
}

// Resetter runs the admin PIN reset: look up the client, require a phone, generate and persist a
// new PIN, then try to deliver it. The PIN is returned to the caller only when delivery fails.
type Resetter struct {
	Clients  ports.ClientStore
	Channel  ports.Messenger
	Messages types.Messages

	// Limiter and ResetRPM throttle resets per client. A nil Limiter or ResetRPM of 0 disables it.
	Limiter  ports.RateLimiter
	ResetRPM int

	// DeliveryTimeout bounds the whole delivery attempt. Defaults to DefaultDeliveryTimeout.
	DeliveryTimeout time.Duration

	// Generate defaults to pin.Generate.
	Generate func() (string, error)

	Observer Observer
}

// ResetResult is what the admin gets back.
// Pin is set only for DeliveredWarningFallback. Version is the PinVersion written by this reset.
type ResetResult struct {
	Outcome    Outcome
	ClientName string
	Pin        string
	Warning    string
	Version    int64
	Reason     error
}

// Run executes one reset for clientKey. Like the other flows it reports non-success outcomes
// through statusCode and a non-nil err; result.Outcome is always set.
func (r *Resetter) Run(ctx context.Context, clientKey string) (result ResetResult, statusCode int, err error) {
	defer func() {
		if r.Observer != nil {
			r.Observer.ObserveReset(result.Outcome)
		}
	}()
	logger := log.WithField("clientKey", clientKey)

	// Lookup
	client, err := r.Clients.GetClient(ctx, clientKey)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			logger.Info("pin reset for unknown client")
			return ResetResult{Outcome: NotFound}, http.StatusNotFound, err
		}
		logger.WithError(err).Error("pin reset: client lookup failed")
		return ResetResult{Outcome: InternalError}, http.StatusInternalServerError, err
	}
	result.ClientName = client.FullName

	// Validate
	if !client.HasPhone() {
		logger.Info("pin reset rejected: client has no phone")
		result.Outcome = Rejected
		return result, http.StatusBadRequest, ErrPhoneRequired
	}
	logger = logger.WithField("phone", types.MaskPhone(client.Phone))

	if r.Limiter != nil && r.ResetRPM > 0 {
		ok, acquireErr := r.Limiter.Acquire(ctx, "RESET:"+clientKey, r.ResetRPM, time.Minute)
		if acquireErr != nil {
			logger.WithError(acquireErr).Error("failed to acquire reset rate limit")
			result.Outcome = InternalError
			return result, http.StatusInternalServerError, fmt.Errorf("rate limit check failed: %w", acquireErr)
		}
		if !ok {
			logger.Warn("pin reset throttled")
			result.Outcome = Throttled
			return result, http.StatusTooManyRequests, ErrThrottled
		}
	}

	// Generate
	generate := r.Generate
	if generate == nil {
		generate = pin.Generate
	}
	newPin, err := generate()
	if err != nil {
		logger.WithError(err).Error("pin generation failed")
		result.Outcome = InternalError
		return result, http.StatusInternalServerError, err
	}

	// Persist
	version, err := r.Clients.UpdatePin(ctx, clientKey, newPin)
	if err != nil {
		status := http.StatusInternalServerError
		result.Outcome = InternalError
		if errors.Is(err, types.ErrNotFound) {
			// deleted between lookup and write
			status = http.StatusNotFound
			result.Outcome = NotFound
		}
		logger.WithError(err).Error("pin persist failed")
		return result, status, err
	}
	result.Version = version
	logger = logger.WithField("pinVersion", version)

	// Deliver
	text := fmt.Sprintf(r.Messages.PinNotification, client.FullName, newPin)
	started := time.Now()
	deliverErr := r.deliver(ctx, client.Phone, text)
	if r.Observer != nil {
		r.Observer.ObserveDelivery(deliverErr == nil, time.Since(started))
	}
	if deliverErr == nil {
		logger.Info("pin reset delivered")
		result.Outcome = Delivered
		return result, http.StatusOK, nil
	}

	logger.WithError(deliverErr).Warn("pin reset not delivered, returning pin to admin")
	result.Outcome = DeliveredWarningFallback
	result.Pin = newPin
	result.Warning = r.Messages.ChannelUnavailable
	result.Reason = deliverErr
	return result, http.StatusOK, nil
}

// deliver checks the channel state and sends text, all within DeliveryTimeout. It runs detached
// from the caller's cancellation because the PIN is already persisted. A channel that does not
// return in time counts as undelivered.
func (r *Resetter) deliver(ctx context.Context, address, text string) error {
	timeout := r.DeliveryTimeout
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		if st := r.Channel.Status(dctx); !st.Connected {
			done <- types.ErrChannelNotConnected
			return
		}
		done <- r.Channel.Send(dctx, address, text)
	}()

	select {
	case err := <-done:
		return err
	case <-dctx.Done():
		return errors.Join(ErrDeliveryTimeout, dctx.Err())
	}
}
