package flow

import (
	"errors"
	"time"
)

// Outcome is the terminal state of a reset.
type Outcome int

const (
	InternalError Outcome = iota // store, generator or other unexpected failure; nothing disclosed.
	Delivered                    // PIN persisted and accepted by the channel.
	DeliveredWarningFallback     // PIN persisted but not delivered; returned to the admin with a warning.
	Rejected                     // client has no phone; PIN untouched.
	NotFound
	Throttled
)

var StatusTextMap = map[Outcome]string{
	InternalError:            "internal_error",
	Delivered:                "delivered",
	DeliveredWarningFallback: "delivered_warning_fallback",
	Rejected:                 "rejected",
	NotFound:                 "not_found",
	Throttled:                "throttled",
}

func (o Outcome) String() string {
	if s, ok := StatusTextMap[o]; ok {
		return s
	}
	return "unknown"
}

var (
	ErrPhoneRequired   = errors.New("client has no phone")
	ErrThrottled       = errors.New("too many resets")
	ErrDeliveryTimeout = errors.New("delivery timed out")
	ErrInvalidPin      = errors.New("malformed pin")
	ErrTooManyAttempts = errors.New("too many failed attempts")
	ErrInvalidFilter   = errors.New("invalid filter expression")
)

var timeNow = time.Now

func SetTimNowFn(f func() time.Time) {
	timeNow = f
}

func RestoreTimeNow() {
	timeNow = time.Now
}
