package pub

import (
	"context"
	"errors"

	"pinrelay/internal/types"
)

var (
	ErrChannelPaused = errors.New("messaging channel paused")
	ErrNoAddress     = errors.New("no channel address")
	ErrSendFailed    = errors.New("send failed")
)

// Offline is a channel that never connects. Every Send fails with types.ErrChannelNotConnected,
// so resets always take the fallback path and disclose the PIN to the admin.
type Offline struct{}

func NewOffline() Offline { return Offline{} }

func (Offline) Send(context.Context, string, string) error { return types.ErrChannelNotConnected }

func (Offline) Status(context.Context) types.ChannelStatus {
	return types.ChannelStatus{Connected: false, Running: true}
}
