package repository

import (
	"context"
	"log/slog"
	"sync"
)

type Table string

const (
	TableUsers Table = "users"
	TablePosts Table = "posts"
)

// Hub fans out table change signals to watchers.
// Signals are coalesced: a slow watcher sees one pending change, not a backlog.
type Hub struct {
	mu   sync.Mutex
	subs map[Table]map[chan struct{}]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[Table]map[chan struct{}]struct{}),
	}
}

func (h *Hub) subscribe(table Table) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	if h.subs[table] == nil {
		h.subs[table] = make(map[chan struct{}]struct{})
	}
	h.subs[table][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs[table], ch)
		h.mu.Unlock()
	}
}

func (h *Hub) publish(table Table) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[table] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// watch re-runs load after every change to table and delivers the full result.
// The first delivery happens right away. The channel closes when ctx is done.
func watch[T any](ctx context.Context, h *Hub, table Table, load func(context.Context) (T, error)) <-chan T {
	out := make(chan T, 1)
	changes, unsubscribe := h.subscribe(table)

	go func() {
		defer close(out)
		defer unsubscribe()

		for {
			result, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("watch query failed", "table", table, "error", err)
			} else {
				select {
				case out <- result:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-changes:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
