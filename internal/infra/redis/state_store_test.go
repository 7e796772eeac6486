package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"trivia-league-service/internal/gateway"
)

type counter struct {
	N int `json:"n"`
}

func newTestStore(t *testing.T) (*StateStore, *goredis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return NewStateStore(client), client
}

func TestGetMissingKey(t *testing.T) {
	store, _ := newTestStore(t)
	var c counter
	if err := store.Get(context.Background(), "nope", &c); !errors.Is(err, gateway.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestSetAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if err := store.Set(ctx, "c", counter{N: 3}, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	var c counter
	if err := store.Get(ctx, "c", &c); err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.N != 3 {
		t.Fatalf("unexpected doc: %+v", c)
	}
}

func TestSetMergeFoldsTopLevelFields(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if err := store.Set(ctx, "doc", map[string]any{"a": 1, "b": 2}, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "doc", map[string]any{"b": 9}, true); err != nil {
		t.Fatalf("merge set: %v", err)
	}

	var got map[string]int
	if err := store.Get(ctx, "doc", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got["a"] != 1 || got["b"] != 9 {
		t.Fatalf("unexpected merged doc: %v", got)
	}
}

func TestTransactAppliesWritesAtomically(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	err := store.Transact(ctx, []string{"a", "b"}, func(tx gateway.Tx) error {
		tx.Set("a", counter{N: 1})
		tx.Set("b", counter{N: 2})
		return nil
	})
	if err != nil {
		t.Fatalf("transact: %v", err)
	}

	var a, b counter
	if err := store.Get(ctx, "a", &a); err != nil {
		t.Fatalf("get a: %v", err)
	}
	if err := store.Get(ctx, "b", &b); err != nil {
		t.Fatalf("get b: %v", err)
	}
	if a.N != 1 || b.N != 2 {
		t.Fatalf("unexpected docs: a=%+v b=%+v", a, b)
	}
}

func TestTransactConflictsWithInterleavedWrite(t *testing.T) {
	ctx := context.Background()
	store, client := newTestStore(t)

	if err := store.Set(ctx, "c", counter{N: 1}, false); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := store.Transact(ctx, []string{"c"}, func(tx gateway.Tx) error {
		var c counter
		if err := tx.Get("c", &c); err != nil {
			return err
		}
		// Dirty the watched key from another connection before commit.
		if err := client.Set(ctx, "c", `{"n":99}`, 0).Err(); err != nil {
			return err
		}
		tx.Set("c", counter{N: c.N + 1})
		return nil
	})
	if !errors.Is(err, gateway.ErrTxConflict) {
		t.Fatalf("expected ErrTxConflict, got %v", err)
	}

	var c counter
	if err := store.Get(ctx, "c", &c); err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.N != 99 {
		t.Fatalf("aborted transaction leaked a write: %+v", c)
	}
}

func TestCallbackErrorAbortsWithoutWrites(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	boom := errors.New("boom")
	err := store.Transact(ctx, []string{"x"}, func(tx gateway.Tx) error {
		tx.Set("x", counter{N: 1})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	var c counter
	if err := store.Get(ctx, "x", &c); !errors.Is(err, gateway.ErrKeyNotFound) {
		t.Fatalf("expected no write, got err=%v doc=%+v", err, c)
	}
}

func TestSubscribeDeliversCommittedWrites(t *testing.T) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()
	store, _ := newTestStore(t)

	ch, cancel, err := store.Subscribe(ctx, "doc")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if err := store.Set(ctx, "doc", counter{N: 7}, false); err != nil {
		t.Fatalf("set: %v", err)
	}

	select {
	case payload := <-ch:
		if string(payload) != `{"n":7}` {
			t.Fatalf("unexpected payload: %s", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no update delivered")
	}
}
