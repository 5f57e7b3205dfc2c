// Package sync turns store change feeds into live, deduplicated views.
//
// Each view runs one reactor goroutine. The reactor owns an id → value map
// built from a primary watch, keeps one secondary watch per primary key
// when the view needs dependent data, and emits only what changed.
package sync

import (
	"context"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/batterydied/chatter/internal/bus"
	"github.com/batterydied/chatter/internal/config"
	"github.com/batterydied/chatter/internal/status"
	"github.com/batterydied/chatter/internal/store"
)

// Options tunes reconciliation.
type Options struct {
	// RetryAttempts bounds the retries of a transient materialization failure.
	RetryAttempts  int
	RetryBaseDelay time.Duration
	// BufferSize is the capacity of a handle's update channel.
	BufferSize int
	// RecoverInterval is how often a degraded view retries failed entities.
	RecoverInterval time.Duration
}

// OptionsFromConfig builds Options from the [sync] config section.
func OptionsFromConfig(c config.Sync) Options {
	return Options{
		RetryAttempts:   c.RetryAttempts,
		RetryBaseDelay:  c.RetryBaseDelay,
		BufferSize:      c.BufferSize,
		RecoverInterval: time.Second,
	}
}

func (o Options) withDefaults() Options {
	if o.RetryAttempts < 0 {
		o.RetryAttempts = 0
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = 50 * time.Millisecond
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 64
	}
	if o.RecoverInterval <= 0 {
		o.RecoverInterval = time.Second
	}
	return o
}

// Engine opens views and tracks them until they are closed.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	opts   Options

	mu    gosync.Mutex
	open  map[int]func()
	count map[string]int
	next  int
}

// NewEngine creates a new sync engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:     db,
		bus:    b,
		logger: logger,
		opts:   opts.withDefaults(),
		open:   make(map[int]func()),
		count:  make(map[string]int),
	}
}

// OpenViews returns how many views are open.
func (e *Engine) OpenViews() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.open)
}

// OpenViewsByKind returns the number of open views per view kind.
func (e *Engine) OpenViewsByKind() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int, len(e.count))
	for k, n := range e.count {
		out[k] = n
	}
	return out
}

// Stop closes every open view.
func (e *Engine) Stop() {
	e.mu.Lock()
	closers := make([]func(), 0, len(e.open))
	for _, c := range e.open {
		closers = append(closers, c)
	}
	e.mu.Unlock()

	for _, c := range closers {
		c()
	}
}

func (e *Engine) track(kind string, closeFn func()) (release func()) {
	e.mu.Lock()
	id := e.next
	e.next++
	e.open[id] = closeFn
	e.count[kind]++
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		if _, ok := e.open[id]; ok {
			delete(e.open, id)
			e.count[kind]--
		}
		e.mu.Unlock()
	}
}

// Item is one materialized entity of a view.
type Item[V any] struct {
	ID    string
	Value V
}

// Update is one delivery to a view consumer. Only changed entities and a
// changed aggregate are included.
type Update[V, A any] struct {
	View string
	// Snapshot marks the first update, which carries the whole view.
	Snapshot bool
	Items    []Item[V]
	Removed  []string
	// Aggregate is non-nil when the aggregate differs from the last one sent.
	Aggregate *A
	// Status is set when the view health changed.
	Status  status.State
	Warning string
}

func (u *Update[V, A]) empty() bool {
	return !u.Snapshot && len(u.Items) == 0 && len(u.Removed) == 0 &&
		u.Aggregate == nil && u.Status == "" && u.Warning == ""
}

// Handle is an open view. Close must be called to release it and every
// secondary watch it holds.
type Handle[V, A any] struct {
	view    string
	updates chan Update[V, A]
	cancel  context.CancelFunc
	done    chan struct{}
	health  *status.Machine
	once    gosync.Once
	release func()
}

// Updates returns the update channel. It is closed when the view stops.
func (h *Handle[V, A]) Updates() <-chan Update[V, A] { return h.updates }

// View returns the view name.
func (h *Handle[V, A]) View() string { return h.view }

// Status returns the current view health.
func (h *Handle[V, A]) Status() status.State { return h.health.Current() }

// Close stops delivery and waits for the reactor to tear down its watches.
func (h *Handle[V, A]) Close() {
	h.once.Do(func() {
		h.cancel()
		<-h.done
		h.health.Ensure(status.Closed, "closed")
		h.release()
	})
}

// open establishes the watches of spec and starts its reactor. Only a
// failure to establish a watch is returned.
func open[V, A any](ctx context.Context, e *Engine, kind string, spec Spec[V, A]) (*Handle[V, A], error) {
	ctx, cancel := context.WithCancel(ctx)

	primary, err := e.db.Watch(ctx, spec.Primary)
	if err != nil {
		cancel()
		return nil, err
	}
	var aux *store.Watch
	if spec.Context != nil {
		aux, err = e.db.Watch(ctx, *spec.Context)
		if err != nil {
			primary.Close()
			cancel()
			return nil, err
		}
	}

	h := &Handle[V, A]{
		view:    spec.Name,
		updates: make(chan Update[V, A], e.opts.BufferSize),
		cancel:  cancel,
		done:    make(chan struct{}),
		health:  status.NewMachine(spec.Name, e.bus),
	}
	h.release = e.track(kind, h.Close)

	r := &reactor[V, A]{
		spec:    spec,
		db:      e.db,
		log:     e.logger.With(zap.String("view", spec.Name)),
		opts:    e.opts,
		health:  h.health,
		primary: primary,
		aux:     aux,
		inbox:   make(chan input, 16),
		out:     h.updates,
		docs:    make(map[string]store.Document),
		values:  make(map[string]V),
		emitted: make(map[string]bool),
		failed:  make(map[string]string),
		secs:    make(map[string]*secondary),
		secErrs: make(map[string]string),
	}
	go func() {
		defer close(h.done)
		r.run(ctx)
	}()
	return h, nil
}
