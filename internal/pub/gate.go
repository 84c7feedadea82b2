package pub

import (
	"context"
	"sync/atomic"

	"pinrelay/internal/config"
	"pinrelay/internal/ports"
	"pinrelay/internal/types"

	log "github.com/sirupsen/logrus"
)

// Gate is the bot's running switch around a messenger. A stopped gate refuses every Send with
// ErrChannelPaused and reports Running=false; connection state still comes from the inner channel.
type Gate struct {
	inner   ports.Messenger
	stopped atomic.Bool
}

// NewGate wraps inner in a running gate.
func NewGate(inner ports.Messenger) *Gate {
	return &Gate{inner: inner}
}

func (g *Gate) Start() {
	if g.stopped.Swap(false) {
		log.Info("messaging channel started")
	}
}

func (g *Gate) Stop() {
	if !g.stopped.Swap(true) {
		log.Info("messaging channel stopped")
	}
}

func (g *Gate) Running() bool { return !g.stopped.Load() }

func (g *Gate) Send(ctx context.Context, address, text string) error {
	if g.stopped.Load() {
		return ErrChannelPaused
	}
	return g.inner.Send(ctx, address, text)
}

func (g *Gate) Status(ctx context.Context) types.ChannelStatus {
	st := g.inner.Status(ctx)
	st.Running = st.Running && g.Running()
	return st
}

// Open returns the channel selected by s.ChannelBackend wrapped in a Gate.
func Open(ctx context.Context, s config.Settings) (*Gate, error) {
	var inner ports.Messenger = NewOffline()
	if s.ChannelBackend == config.ChannelSNS {
		sms, err := NewSMSFromSettings(ctx, s)
		if err != nil {
			return nil, err
		}
		inner = sms
	}
	log.WithField("channel", s.ChannelBackend).Info("messaging channel ready")
	return NewGate(inner), nil
}
