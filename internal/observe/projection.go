package observe

import (
	"log/slog"
	"sync"
)

type State int

const (
	Idle State = iota
	Loading
	Online
	Offline
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Online:
		return "online"
	case Offline:
		return "offline"
	}
	return "idle"
}

// Ordering decides which load results a projection accepts.
type Ordering int

const (
	// Latest keeps only the result of the most recently started load.
	Latest Ordering = iota
	// LastResponse applies every result in arrival order, so a slow early load
	// can overwrite a faster later one.
	LastResponse
)

// Projection is the view state of one resource: its value plus the loading,
// offline and last-error flags. Only the coordinator that owns it writes to it.
type Projection[T any] struct {
	Value   *Value[T]
	Loading *Value[bool]
	Offline *Value[bool]
	Error   *Value[string]
	State   *Value[State]

	name     string
	ordering Ordering

	mu         sync.Mutex
	generation uint64
	pending    int
}

func NewProjection[T any](name string, ordering Ordering) *Projection[T] {
	var zero T
	return &Projection[T]{
		Value:    NewValue(zero),
		Loading:  NewValue(false),
		Offline:  NewValue(false),
		Error:    NewValue(""),
		State:    NewValue(Idle),
		name:     name,
		ordering: ordering,
	}
}

// Ticket identifies one load. Exactly one of Online, Offline or Fail should be
// called on it.
type Ticket[T any] struct {
	p          *Projection[T]
	generation uint64
	once       sync.Once
}

func (t *Ticket[T]) Generation() uint64 {
	return t.generation
}

// Begin starts a load and marks the projection as loading.
func (p *Projection[T]) Begin() *Ticket[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation++
	p.pending++
	p.Loading.Set(true)
	p.State.Set(Loading)

	return &Ticket[T]{p: p, generation: p.generation}
}

// Online publishes a result from the remote and clears the offline flag.
// It reports whether the result was applied.
func (t *Ticket[T]) Online(v T) bool {
	return t.finish(func(p *Projection[T]) {
		p.Value.Set(v)
		p.Offline.Set(false)
		p.Error.Set("")
		p.State.Set(Online)
	})
}

// Offline publishes a fallback result read from the cache and raises the
// offline flag. No error is shown for it.
func (t *Ticket[T]) Offline(v T) bool {
	return t.finish(func(p *Projection[T]) {
		p.Value.Set(v)
		p.Offline.Set(true)
		p.Error.Set("")
		p.State.Set(Offline)
	})
}

// Fail records err as the last error and keeps the current value.
func (t *Ticket[T]) Fail(err error) bool {
	return t.finish(func(p *Projection[T]) {
		p.Error.Set(err.Error())
		p.State.Set(Idle)
	})
}

func (t *Ticket[T]) finish(apply func(p *Projection[T])) bool {
	applied := false
	t.once.Do(func() {
		p := t.p
		p.mu.Lock()
		defer p.mu.Unlock()

		p.pending--
		if p.pending == 0 {
			p.Loading.Set(false)
		}

		if p.ordering == Latest && t.generation != p.generation {
			slog.Debug("dropping stale result", "resource", p.name, "generation", t.generation, "latest", p.generation)
			return
		}

		apply(p)
		applied = true
	})
	return applied
}

// Push publishes a value from a live subscription. Loads started earlier are
// superseded by it.
func (p *Projection[T]) Push(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation++
	p.Value.Set(v)
	p.Offline.Set(false)
	p.Error.Set("")
	p.State.Set(Online)
}

// Snapshot is a consistent read of a projection.
type Snapshot[T any] struct {
	Value   T
	Loading bool
	Offline bool
	Error   string
	State   State
}

func (p *Projection[T]) Snapshot() Snapshot[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Snapshot[T]{
		Value:   p.Value.Get(),
		Loading: p.Loading.Get(),
		Offline: p.Offline.Get(),
		Error:   p.Error.Get(),
		State:   p.State.Get(),
	}
}
