// Package remotetest provides an in-memory remote.Store with fault injection.
package remotetest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/travelog/travelog/internal/remote"
)

type Op string

const (
	OpGet    Op = "get"
	OpFind   Op = "find"
	OpSet    Op = "set"
	OpMerge  Op = "merge"
	OpDelete Op = "delete"
)

// Hook runs before every operation, outside the store lock. It may block to
// reorder responses, or return an error to fail the operation.
type Hook func(ctx context.Context, op Op, collection remote.Collection) error

type Store struct {
	mu       sync.Mutex
	docs     map[remote.Collection]map[string][]byte
	offline  bool
	hook     Hook
	watchers map[remote.Collection]map[chan struct{}]struct{}
	calls    map[Op]int
}

func New() *Store {
	return &Store{
		docs:     make(map[remote.Collection]map[string][]byte),
		watchers: make(map[remote.Collection]map[chan struct{}]struct{}),
		calls:    make(map[Op]int),
	}
}

// SetOffline makes every operation fail with remote.ErrRemoteUnavailable and
// breaks open change streams.
func (s *Store) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offline = offline
	if offline {
		for collection, set := range s.watchers {
			for ch := range set {
				close(ch)
			}
			delete(s.watchers, collection)
		}
	}
}

func (s *Store) SetHook(hook Hook) {
	s.mu.Lock()
	s.hook = hook
	s.mu.Unlock()
}

// Calls returns how many times op reached the store.
func (s *Store) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// PutRaw stores body as-is, bypassing validation. Use it to seed odd documents.
func (s *Store) PutRaw(collection remote.Collection, id string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(collection, id, body)
	s.notify(collection)
}

// Len returns the number of documents in a collection.
func (s *Store) Len(collection remote.Collection) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs[collection])
}

func (s *Store) enter(ctx context.Context, op Op, collection remote.Collection) error {
	s.mu.Lock()
	hook := s.hook
	s.calls[op]++
	s.mu.Unlock()

	if hook != nil {
		err := hook(ctx, op, collection)
		if err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	offline := s.offline
	s.mu.Unlock()
	if offline {
		return fmt.Errorf("%w: network is down", remote.ErrRemoteUnavailable)
	}
	return nil
}

func (s *Store) put(collection remote.Collection, id string, body []byte) {
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string][]byte)
	}
	s.docs[collection][id] = bytes.Clone(body)
}

func (s *Store) notify(collection remote.Collection) {
	for ch := range s.watchers[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) Get(ctx context.Context, collection remote.Collection, id string) (remote.RawDocument, error) {
	err := s.enter(ctx, OpGet, collection)
	if err != nil {
		return remote.RawDocument{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	body, ok := s.docs[collection][id]
	if !ok {
		return remote.RawDocument{}, remote.ErrNotFound
	}
	return remote.RawDocument{ID: id, Body: bytes.Clone(body)}, nil
}

func (s *Store) Find(ctx context.Context, q remote.Query) ([]remote.RawDocument, error) {
	err := s.enter(ctx, OpFind, q.Collection)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type candidate struct {
		doc    remote.RawDocument
		fields map[string]any
	}

	var found []candidate
	for id, body := range s.docs[q.Collection] {
		var fields map[string]any
		_ = json.Unmarshal(body, &fields)

		if q.Field != "" {
			v, ok := fields[q.Field].(string)
			if !ok || v != q.Value {
				continue
			}
		}
		found = append(found, candidate{doc: remote.RawDocument{ID: id, Body: bytes.Clone(body)}, fields: fields})
	}

	if q.OrderBy != "" {
		slices.SortStableFunc(found, func(a, b candidate) int {
			av, _ := a.fields[q.OrderBy].(float64)
			bv, _ := b.fields[q.OrderBy].(float64)
			if q.Desc {
				av, bv = bv, av
			}
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		})
	}

	if q.Limit > 0 && len(found) > q.Limit {
		found = found[:q.Limit]
	}

	docs := make([]remote.RawDocument, 0, len(found))
	for _, c := range found {
		docs = append(docs, c.doc)
	}
	return docs, nil
}

func (s *Store) Set(ctx context.Context, collection remote.Collection, id string, body []byte) error {
	err := s.enter(ctx, OpSet, collection)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(collection, id, body)
	s.notify(collection)
	return nil
}

func (s *Store) Merge(ctx context.Context, collection remote.Collection, id string, fields []byte) error {
	err := s.enter(ctx, OpMerge, collection)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	body, ok := s.docs[collection][id]
	if !ok {
		return remote.ErrNotFound
	}

	var current, patch map[string]any
	if err := json.Unmarshal(body, &current); err != nil || current == nil {
		current = make(map[string]any)
	}
	if err := json.Unmarshal(fields, &patch); err != nil {
		return fmt.Errorf("%w: %v", remote.ErrMalformed, err)
	}
	for k, v := range patch {
		current[k] = v
	}

	merged, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("%w: %v", remote.ErrMalformed, err)
	}

	s.put(collection, id, merged)
	s.notify(collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection remote.Collection, id string) error {
	err := s.enter(ctx, OpDelete, collection)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[collection][id]; ok {
		delete(s.docs[collection], id)
		s.notify(collection)
	}
	return nil
}

func (s *Store) Changes(ctx context.Context, collection remote.Collection) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.offline {
		return nil, fmt.Errorf("%w: network is down", remote.ErrRemoteUnavailable)
	}

	ch := make(chan struct{}, 1)
	if s.watchers[collection] == nil {
		s.watchers[collection] = make(map[chan struct{}]struct{})
	}
	s.watchers[collection][ch] = struct{}{}

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[collection][ch]; ok {
			delete(s.watchers[collection], ch)
			close(ch)
		}
	}()

	return ch, nil
}
