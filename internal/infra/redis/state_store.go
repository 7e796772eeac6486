package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"trivia-league-service/internal/gateway"
)

// StateStore implements gateway.Store on redis. Documents are JSON strings;
// transactions use WATCH/MULTI optimistic concurrency; every committed
// write is published on a per-document channel to feed Subscribe.
type StateStore struct {
	client *redis.Client
}

func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client}
}

func docChannel(key string) string {
	return "doc:" + key
}

func (s *StateStore) Get(ctx context.Context, key string, dest any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return gateway.ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return json.Unmarshal(data, dest)
}

func (s *StateStore) Set(ctx context.Context, key string, value any, merge bool) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	if !merge {
		return s.write(ctx, key, data)
	}

	// Merge is a read-modify-write, so it runs under WATCH like any other
	// guarded mutation.
	return gateway.TransactWithRetry(ctx, s, gateway.DefaultTxAttempts, []string{key}, func(tx gateway.Tx) error {
		var current json.RawMessage
		err := tx.Get(key, &current)
		switch {
		case errors.Is(err, gateway.ErrKeyNotFound):
			tx.Set(key, json.RawMessage(data))
			return nil
		case err != nil:
			return err
		}
		merged, err := gateway.MergeDocuments(current, data)
		if err != nil {
			return err
		}
		tx.Set(key, json.RawMessage(merged))
		return nil
	})
}

func (s *StateStore) write(ctx context.Context, key string, data []byte) error {
	pipe := s.client.Pipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.Publish(ctx, docChannel(key), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *StateStore) Subscribe(ctx context.Context, key string) (<-chan []byte, func(), error) {
	pubsub := s.client.Subscribe(ctx, docChannel(key))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", key, err)
	}

	out := make(chan []byte, 8)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { _ = pubsub.Close() })
	}
	return out, cancel, nil
}

func (s *StateStore) Transact(ctx context.Context, keys []string, fn func(tx gateway.Tx) error) error {
	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		tx := &redisTx{ctx: ctx, tx: rtx}
		if err := fn(tx); err != nil {
			return err
		}
		if tx.err != nil {
			return tx.err
		}
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, key := range tx.order {
				data := tx.writes[key]
				pipe.Set(ctx, key, data, 0)
				pipe.Publish(ctx, docChannel(key), data)
			}
			return nil
		})
		return err
	}, keys...)

	if errors.Is(err, redis.TxFailedErr) {
		return gateway.ErrTxConflict
	}
	return err
}

type redisTx struct {
	ctx    context.Context
	tx     *redis.Tx
	writes map[string][]byte
	order  []string
	err    error
}

func (t *redisTx) Get(key string, dest any) error {
	if data, ok := t.writes[key]; ok {
		return json.Unmarshal(data, dest)
	}
	data, err := t.tx.Get(t.ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return gateway.ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("tx get %s: %w", key, err)
	}
	return json.Unmarshal(data, dest)
}

func (t *redisTx) Set(key string, value any) {
	data, err := json.Marshal(value)
	if err != nil && t.err == nil {
		t.err = fmt.Errorf("marshal %s: %w", key, err)
		return
	}
	if t.writes == nil {
		t.writes = make(map[string][]byte)
	}
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = data
}
