package types

// ChannelStatus is the messaging channel state as reported by the transport.
// It is never persisted; read it from ports.Messenger when needed.
type ChannelStatus struct {
	Connected bool `json:"connected"`
	Running   bool `json:"running"`
}
