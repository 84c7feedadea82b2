package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pinrelay/internal/pin"
	"pinrelay/internal/types"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	clientKeyNameTemplate = "_pinrelay_client_%s"

	// maxTxRetries bounds optimistic transaction retries when WATCH detects a concurrent write.
	maxTxRetries = 100
	scanCount    = 200
)

// ClientStore keeps each client as one JSON string. Writes run inside WATCH/MULTI so a
// concurrent writer forces a re-read instead of overwriting with stale data.
type ClientStore struct {
	cli *redis.Client
	now func() time.Time
}

func NewClientStore(cli *redis.Client) *ClientStore {
	return &ClientStore{cli: cli, now: time.Now}
}

func (s *ClientStore) GetClient(ctx context.Context, clientKey string) (types.Client, error) {
	return s.get(ctx, s.cli, clientKey)
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *ClientStore) get(ctx context.Context, cmd getter, clientKey string) (types.Client, error) {
	out := cmd.Get(ctx, getClientKey(clientKey))
	if out.Err() != nil {
		if errors.Is(out.Err(), redis.Nil) {
			return types.Client{}, types.ErrNotFound
		}
		return types.Client{}, types.Err(types.ErrDataStoreAccess, out.Err(), "get client %s", clientKey)
	}
	var c types.Client
	if err := json.Unmarshal([]byte(out.Val()), &c); err != nil {
		return types.Client{}, types.Err(types.ErrDataStoreAccess, err, "decode client %s", clientKey)
	}
	return c, nil
}

func (s *ClientStore) ListClients(ctx context.Context) (map[string]types.Client, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	clients := make(map[string]types.Client, len(keys))
	if len(keys) == 0 {
		return clients, nil
	}
	vals, err := s.cli.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, types.Err(types.ErrDataStoreAccess, err, "list clients")
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// deleted between SCAN and MGET
			continue
		}
		var c types.Client
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			log.WithError(err).WithField("key", keys[i]).Warn("skipping undecodable client record")
			continue
		}
		clients[c.Key] = c
	}
	return clients, nil
}

func (s *ClientStore) PutClient(ctx context.Context, client types.Client) error {
	if err := client.Validate(); err != nil {
		return types.Err(types.ErrInvalidClient, err, "")
	}
	key := getClientKey(client.Key)
	_, err := s.update(ctx, key, func(tx *redis.Tx) (types.Client, error) {
		now := s.now().Unix()
		next := client
		next.UpdatedAt = now
		prev, err := s.get(ctx, tx, client.Key)
		switch {
		case errors.Is(err, types.ErrNotFound):
			next.PinVersion = 0
			if next.Pin != "" {
				next.PinVersion = 1
				next.PinUpdatedAt = now
			}
			if next.CreatedAt == 0 {
				next.CreatedAt = now
			}
		case err != nil:
			return types.Client{}, err
		default:
			next.CreatedAt = prev.CreatedAt
			next.PinVersion = prev.PinVersion
			next.PinUpdatedAt = prev.PinUpdatedAt
			if next.Pin != prev.Pin {
				next.PinVersion++
				next.PinUpdatedAt = now
			}
		}
		return next, nil
	})
	return err
}

func (s *ClientStore) UpdatePin(ctx context.Context, clientKey, newPin string) (int64, error) {
	if !pin.Valid(newPin) {
		return 0, types.Err(types.ErrInvalidClient, nil, "pin must be exactly %d digits", pin.Length)
	}
	next, err := s.update(ctx, getClientKey(clientKey), func(tx *redis.Tx) (types.Client, error) {
		c, err := s.get(ctx, tx, clientKey)
		if err != nil {
			return types.Client{}, err
		}
		now := s.now().Unix()
		c.Pin = newPin
		c.PinVersion++
		c.PinUpdatedAt = now
		c.UpdatedAt = now
		return c, nil
	})
	if err != nil {
		return 0, err
	}
	return next.PinVersion, nil
}

// update runs mutate under WATCH on key and writes its result in a MULTI block,
// retrying when another client modified key in between.
func (s *ClientStore) update(ctx context.Context, key string, mutate func(tx *redis.Tx) (types.Client, error)) (types.Client, error) {
	var next types.Client
	txf := func(tx *redis.Tx) error {
		var err error
		next, err = mutate(tx)
		if err != nil {
			return err
		}
		b, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, string(b), 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.cli.Watch(ctx, txf, key)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrDataStoreAccess) {
			return types.Client{}, err
		}
		return types.Client{}, types.Err(types.ErrDataStoreAccess, err, "write %s", key)
	}
	return types.Client{}, types.Err(types.ErrPrecondition, redis.TxFailedErr, "write %s: too much contention", key)
}

func (s *ClientStore) ClearAll(ctx context.Context) error {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.cli.Del(ctx, keys...).Err()
}

func (s *ClientStore) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.cli.Scan(ctx, 0, getClientKey("*"), scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, types.Err(types.ErrDataStoreAccess, err, "scan clients")
	}
	return keys, nil
}

func getClientKey(clientKey string) string {
	return fmt.Sprintf(clientKeyNameTemplate, clientKey)
}
