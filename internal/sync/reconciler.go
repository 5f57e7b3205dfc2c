package sync

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/batterydied/chatter/internal/apperr"
	"github.com/batterydied/chatter/internal/status"
	"github.com/batterydied/chatter/internal/store"
)

// Spec describes one view.
type Spec[V, A any] struct {
	Name    string
	Primary store.Query
	// Materialize turns a primary document into a view value. ok=false
	// excludes the entity. Errors are soft: the entity is excluded, and
	// transient errors are retried first.
	Materialize func(ctx context.Context, doc store.Document) (v V, ok bool, err error)
	// Secondary returns the dependent query of a primary document. Any
	// change it reports re-materializes that document.
	Secondary func(doc store.Document) (store.Query, bool)
	// Context is an optional auxiliary watch whose changes feed OnContext
	// and then the aggregate.
	Context   *store.Query
	OnContext func(c store.Change)
	// Aggregate derives the view-wide value from the current entities.
	Aggregate func(values map[string]V) A
}

type input struct {
	key   string
	sec   *secondary
	batch store.Batch
}

type secondary struct {
	watch  *store.Watch
	cancel context.CancelFunc
}

func (s *secondary) close() {
	s.cancel()
	s.watch.Close()
}

type reactor[V, A any] struct {
	spec   Spec[V, A]
	db     *store.DB
	log    *zap.Logger
	opts   Options
	health *status.Machine

	primary *store.Watch
	aux     *store.Watch
	inbox   chan input
	out     chan Update[V, A]

	// docs holds every primary document, including excluded ones; its key
	// set drives the secondary watches.
	docs   map[string]store.Document
	values map[string]V
	// emitted is the set of ids the consumer currently holds.
	emitted map[string]bool
	// failed and secErrs hold transient failures still to be retried.
	failed  map[string]string
	secs    map[string]*secondary
	secErrs map[string]string

	touched []string
	agg     A
	aggSent bool
	warning string
}

func (r *reactor[V, A]) run(ctx context.Context) {
	defer close(r.out)
	defer r.teardown()

	if r.aux != nil {
		// The context snapshot is applied first so the first aggregate is right.
		b, ok := r.recv(ctx, r.aux.C())
		if !ok {
			return
		}
		r.applyContext(b)
	}
	b, ok := r.recv(ctx, r.primary.C())
	if !ok {
		return
	}
	u := Update[V, A]{Snapshot: true}
	r.applyPrimary(ctx, b)
	if !r.finish(ctx, &u) {
		return
	}

	retryTick := time.NewTicker(r.opts.RecoverInterval)
	defer retryTick.Stop()

	var auxC <-chan store.Batch
	if r.aux != nil {
		auxC = r.aux.C()
	}
	for {
		u := Update[V, A]{}
		select {
		case <-ctx.Done():
			return
		case b, ok := <-r.primary.C():
			if !ok {
				return
			}
			r.applyPrimary(ctx, b)
		case b, ok := <-auxC:
			if !ok {
				return
			}
			r.applyContext(b)
		case in := <-r.inbox:
			r.applySecondary(ctx, in)
		case <-retryTick.C:
			if len(r.failed) == 0 && len(r.secErrs) == 0 {
				continue
			}
			r.retryFailed(ctx)
		}
		if !r.finish(ctx, &u) {
			return
		}
	}
}

func (r *reactor[V, A]) recv(ctx context.Context, c <-chan store.Batch) (store.Batch, bool) {
	select {
	case b, ok := <-c:
		return b, ok
	case <-ctx.Done():
		return store.Batch{}, false
	}
}

func (r *reactor[V, A]) applyPrimary(ctx context.Context, b store.Batch) {
	for _, c := range b.Changes {
		id := c.Doc.DocID()
		if c.Type == store.Removed {
			delete(r.docs, id)
			delete(r.failed, id)
			r.drop(id)
			continue
		}
		r.docs[id] = c.Doc
		r.materialize(ctx, id, c.Doc)
	}
	r.reconcileSecondaries(ctx)
}

func (r *reactor[V, A]) applySecondary(ctx context.Context, in input) {
	if r.secs[in.key] != in.sec {
		// Torn down since the batch was queued.
		return
	}
	if doc, ok := r.docs[in.key]; ok {
		r.materialize(ctx, in.key, doc)
	}
}

func (r *reactor[V, A]) applyContext(b store.Batch) {
	if r.spec.OnContext == nil {
		return
	}
	for _, c := range b.Changes {
		r.spec.OnContext(c)
	}
}

func (r *reactor[V, A]) retryFailed(ctx context.Context) {
	for id := range r.failed {
		if doc, ok := r.docs[id]; ok {
			r.materialize(ctx, id, doc)
		} else {
			delete(r.failed, id)
		}
	}
	r.reconcileSecondaries(ctx)
}

// materialize recomputes one entity and records it as touched when its
// value changed or it left the view.
func (r *reactor[V, A]) materialize(ctx context.Context, id string, doc store.Document) {
	var (
		v  V
		ok bool
	)
	err := retry(ctx, r.opts.RetryAttempts, r.opts.RetryBaseDelay, func() error {
		var err error
		v, ok, err = r.spec.Materialize(ctx, doc)
		return err
	})
	switch {
	case err != nil && apperr.IsTransient(err):
		r.failed[id] = err.Error()
		r.log.Warn("materialize failed after retries", zap.String("id", id), zap.Error(err))
	case err != nil:
		delete(r.failed, id)
		r.log.Debug("entity excluded", zap.String("id", id), zap.Error(err))
	default:
		delete(r.failed, id)
	}
	if err != nil || !ok {
		r.drop(id)
		return
	}
	if prev, had := r.values[id]; had && reflect.DeepEqual(prev, v) {
		return
	}
	r.values[id] = v
	r.touch(id)
}

func (r *reactor[V, A]) drop(id string) {
	if _, had := r.values[id]; had {
		delete(r.values, id)
		r.touch(id)
	}
}

func (r *reactor[V, A]) touch(id string) {
	r.touched = append(r.touched, id)
}

// reconcileSecondaries makes the set of secondary watches match the
// current primary key set.
func (r *reactor[V, A]) reconcileSecondaries(ctx context.Context) {
	if r.spec.Secondary == nil {
		return
	}
	for id, s := range r.secs {
		if _, ok := r.docs[id]; !ok {
			s.close()
			delete(r.secs, id)
			delete(r.secErrs, id)
		}
	}
	for id, doc := range r.docs {
		if _, ok := r.secs[id]; ok {
			continue
		}
		q, ok := r.spec.Secondary(doc)
		if !ok {
			continue
		}
		sctx, cancel := context.WithCancel(ctx)
		w, err := r.db.Watch(sctx, q)
		if err != nil {
			cancel()
			r.secErrs[id] = err.Error()
			r.log.Warn("secondary watch failed", zap.String("id", id), zap.String("query", q.Name), zap.Error(err))
			continue
		}
		delete(r.secErrs, id)
		s := &secondary{watch: w, cancel: cancel}
		r.secs[id] = s
		go r.forward(sctx, id, s)
	}
}

func (r *reactor[V, A]) forward(ctx context.Context, key string, s *secondary) {
	for b := range s.watch.C() {
		select {
		case r.inbox <- input{key: key, sec: s, batch: b}:
		case <-ctx.Done():
			return
		}
	}
}

// finish turns the work of one step into an update and delivers it.
// It returns false once the view is closing.
func (r *reactor[V, A]) finish(ctx context.Context, u *Update[V, A]) bool {
	u.View = r.spec.Name

	seen := make(map[string]bool, len(r.touched))
	for _, id := range r.touched {
		if seen[id] {
			continue
		}
		seen[id] = true
		if v, ok := r.values[id]; ok {
			u.Items = append(u.Items, Item[V]{ID: id, Value: v})
			r.emitted[id] = true
		} else if r.emitted[id] {
			u.Removed = append(u.Removed, id)
			delete(r.emitted, id)
		}
	}
	r.touched = r.touched[:0]

	if r.spec.Aggregate != nil {
		a := r.spec.Aggregate(r.values)
		if !r.aggSent || !reflect.DeepEqual(a, r.agg) {
			r.agg, r.aggSent = a, true
			u.Aggregate = &a
		}
	}

	switch reason := r.degradedReason(); {
	case reason == "":
		r.warning = ""
		if r.health.Ensure(status.Live, "") {
			u.Status = status.Live
		}
	case reason != r.warning:
		r.warning = reason
		u.Warning = reason
		if r.health.Ensure(status.Degraded, reason) {
			u.Status = status.Degraded
		}
	}

	if u.empty() {
		return true
	}
	select {
	case r.out <- *u:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *reactor[V, A]) degradedReason() string {
	n := len(r.failed) + len(r.secErrs)
	if n == 0 {
		return ""
	}
	ids := make([]string, 0, n)
	for id := range r.failed {
		ids = append(ids, id)
	}
	for id := range r.secErrs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("%d entities unavailable: %s", n, strings.Join(ids, ", "))
}

func (r *reactor[V, A]) teardown() {
	for id, s := range r.secs {
		s.close()
		delete(r.secs, id)
	}
	r.primary.Close()
	if r.aux != nil {
		r.aux.Close()
	}
}
