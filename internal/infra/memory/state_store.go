package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"trivia-league-service/internal/gateway"
)

type document struct {
	data    []byte
	version uint64
}

// subscriber is one live Subscribe feed. The data channel is never closed:
// cancel closes done instead, so a notifier racing a cancel can at worst
// deliver into a channel nobody reads anymore.
type subscriber struct {
	ch   chan []byte
	done chan struct{}
}

// StateStore is an in-memory gateway.Store with per-key optimistic
// concurrency. It backs tests and the detached/offline mode; the redis
// store is the production implementation.
type StateStore struct {
	mu   sync.RWMutex
	docs map[string]document
	subs map[string]map[*subscriber]struct{}
}

func NewStateStore() *StateStore {
	return &StateStore{
		docs: make(map[string]document),
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

func (s *StateStore) Get(_ context.Context, key string, dest any) error {
	s.mu.RLock()
	doc, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return gateway.ErrKeyNotFound
	}
	return json.Unmarshal(doc.data, dest)
}

func (s *StateStore) Set(_ context.Context, key string, value any, merge bool) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	s.mu.Lock()
	if prev, ok := s.docs[key]; ok && merge {
		data, err = gateway.MergeDocuments(prev.data, data)
		if err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.commitLocked(key, data)
	targets := s.subscribersLocked(key)
	s.mu.Unlock()

	notify(targets, data)
	return nil
}

func (s *StateStore) Subscribe(_ context.Context, key string) (<-chan []byte, func(), error) {
	sub := &subscriber{
		ch:   make(chan []byte, 8),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	if s.subs[key] == nil {
		s.subs[key] = make(map[*subscriber]struct{})
	}
	s.subs[key][sub] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if set, ok := s.subs[key]; ok {
			if _, live := set[sub]; live {
				delete(set, sub)
				close(sub.done)
			}
		}
		s.mu.Unlock()
	}
	return sub.ch, cancel, nil
}

func (s *StateStore) Transact(_ context.Context, keys []string, fn func(tx gateway.Tx) error) error {
	tx := &memTx{store: s, reads: make(map[string]uint64)}
	if err := fn(tx); err != nil {
		return err
	}
	if tx.err != nil {
		return tx.err
	}

	s.mu.Lock()
	for key, version := range tx.reads {
		if s.docs[key].version != version {
			s.mu.Unlock()
			return gateway.ErrTxConflict
		}
	}
	notifies := make(map[string][]*subscriber, len(tx.order))
	for _, key := range tx.order {
		s.commitLocked(key, tx.writes[key])
		notifies[key] = s.subscribersLocked(key)
	}
	s.mu.Unlock()

	for _, key := range tx.order {
		notify(notifies[key], tx.writes[key])
	}
	return nil
}

func (s *StateStore) commitLocked(key string, data []byte) {
	doc := s.docs[key]
	doc.data = data
	doc.version++
	s.docs[key] = doc
}

func (s *StateStore) subscribersLocked(key string) []*subscriber {
	set := s.subs[key]
	if len(set) == 0 {
		return nil
	}
	out := make([]*subscriber, 0, len(set))
	for sub := range set {
		out = append(out, sub)
	}
	return out
}

// notify runs outside the store mutex and must never block or panic:
// cancelled subscribers are skipped, and a slow subscriber loses updates
// (drop the oldest pending one, then at most one more try) rather than
// stalling a commit.
func notify(targets []*subscriber, data []byte) {
	for _, sub := range targets {
		select {
		case <-sub.done:
			continue
		default:
		}
		select {
		case sub.ch <- data:
			continue
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- data:
		default:
		}
	}
}

type memTx struct {
	store  *StateStore
	reads  map[string]uint64
	writes map[string][]byte
	order  []string
	err    error
}

func (t *memTx) Get(key string, dest any) error {
	if data, ok := t.writes[key]; ok {
		return json.Unmarshal(data, dest)
	}

	t.store.mu.RLock()
	doc, ok := t.store.docs[key]
	t.store.mu.RUnlock()

	// Record the observed version (0 for absent docs) so the commit fails
	// if anyone touches the key in the meantime.
	if _, seen := t.reads[key]; !seen {
		t.reads[key] = doc.version
	}
	if !ok {
		return gateway.ErrKeyNotFound
	}
	return json.Unmarshal(doc.data, dest)
}

func (t *memTx) Set(key string, value any) {
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
