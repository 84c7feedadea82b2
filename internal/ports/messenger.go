package ports

import (
	"context"
	"pinrelay/internal/types"
)

// Messenger is the boundary to the messaging transport.
// Send returns nil only when the transport accepted the message for the address; any error means the
// message was not delivered. Implementations SHOULD honor ctx deadlines, callers bound every call anyway.
type Messenger interface {
	Send(ctx context.Context, address, text string) error

	// Status reports the current channel state. It is queried on demand and never cached by callers.
	Status(ctx context.Context) types.ChannelStatus
}
