package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"pinrelay/internal/ports"
	"pinrelay/internal/types"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ClientsFile is the YAML provisioning format:
//
//	clients:
//	  - key: 7ca9ff9d-6c56-406b-9481-9f64ac4b5492
//	    fullName: Rawan
//	    phone: "+963911111111"
type ClientsFile struct {
	Clients []types.Client `yaml:"clients"`
}

// LoadClientsFile parses path, assigns a UUID key to records without one and validates every record.
// Nothing is returned unless the whole file is valid.
func LoadClientsFile(path string) ([]types.Client, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f ClientsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	seen := make(map[string]bool, len(f.Clients))
	for i := range f.Clients {
		c := &f.Clients[i]
		c.Key = strings.TrimSpace(c.Key)
		if c.Key == "" {
			c.Key = uuid.NewString()
		}
		if seen[c.Key] {
			return nil, types.Err(types.ErrInvalidClient, nil, "%s: duplicate key %s", path, c.Key)
		}
		seen[c.Key] = true
		if err := c.Validate(); err != nil {
			return nil, types.Err(types.ErrInvalidClient, err, "%s: client #%d", path, i+1)
		}
	}
	return f.Clients, nil
}

// PutClients writes clients to the store in file order.
func PutClients(ctx context.Context, store ports.ClientStore, clients []types.Client) error {
	for _, c := range clients {
		if err := store.PutClient(ctx, c); err != nil {
			return fmt.Errorf("put client %s: %w", c.Key, err)
		}
		log.WithFields(log.Fields{
			"clientKey": c.Key,
			"phone":     types.MaskPhone(c.Phone),
		}).Debug("client provisioned")
	}
	return nil
}

// SeedFromFile creates the clients listed in path that the store does not hold yet and returns how
// many were created. Existing records are never touched, so a restart cannot roll back a PIN changed
// by a reset. An empty path is a no-op.
func SeedFromFile(ctx context.Context, store ports.ClientStore, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	clients, err := LoadClientsFile(path)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, c := range clients {
		_, err := store.GetClient(ctx, c.Key)
		switch {
		case err == nil:
			log.WithField("clientKey", c.Key).Debug("seed skipped: client exists")
			continue
		case !errors.Is(err, types.ErrNotFound):
			return created, fmt.Errorf("seed client %s: %w", c.Key, err)
		}
		if err := store.PutClient(ctx, c); err != nil {
			return created, fmt.Errorf("seed client %s: %w", c.Key, err)
		}
		created++
	}
	return created, nil
}
