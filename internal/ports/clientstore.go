package ports

import (
	"context"
	"pinrelay/internal/types"
)

// ClientStore is the client registry.
// Records are provisioned through PutClient; the reset flow only reads them and rotates PINs.
type ClientStore interface {
	// GetClient returns the record for clientKey.
	// MUST return types.ErrNotFound if the client does not exist.
	GetClient(ctx context.Context, clientKey string) (types.Client, error)

	// ListClients returns every record keyed by client key.
	ListClients(ctx context.Context) (map[string]types.Client, error)

	// PutClient creates or replaces a record after validating it. PinVersion is kept
	// from the stored record when one exists.
	PutClient(ctx context.Context, client types.Client) error

	// UpdatePin atomically replaces the PIN of an existing client and returns the new PinVersion.
	// Concurrent calls for the same key MUST be serialized: readers never observe a partial PIN and the
	// stored PIN always belongs to the call that returned the highest version.
	// MUST return types.ErrNotFound if the client does not exist and types.ErrInvalidClient for a
	// malformed PIN.
	UpdatePin(ctx context.Context, clientKey, newPin string) (int64, error)

	// ClearAll purges all client records. Used in tests only.
	ClearAll(ctx context.Context) error
}
