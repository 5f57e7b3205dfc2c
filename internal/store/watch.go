package store

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/batterydied/chatter/internal/bus"
)

// ResyncInterval is how often a watch checks its bus subscription for dropped events.
var ResyncInterval = time.Second

const watchBusBuffer = 1024

// Watch is a live query: an initial snapshot followed by change batches
// restricted to the documents matching the query.
type Watch struct {
	query  Query
	ch     chan Batch
	cancel context.CancelFunc
	done   chan struct{}
}

// Watch starts following q. The first batch delivered is the snapshot.
// Batches are delivered in commit order; C is closed when the watch stops.
func (db *DB) Watch(ctx context.Context, q Query) (*Watch, error) {
	if db.bus == nil {
		return nil, errors.New("watch: store has no bus")
	}
	// Subscribe before reading so no commit between the read and the
	// subscription is missed.
	sub := db.bus.Subscribe(EventKind(q.Collection), watchBusBuffer)

	found, err := q.Fetch(ctx, db)
	if err != nil {
		sub.Close()
		return nil, err
	}

	known := make(map[string]Document, len(found))
	initial := Batch{Collection: q.Collection, Snapshot: true}
	for _, d := range found {
		known[d.DocID()] = d
		initial.Changes = append(initial.Changes, Change{Type: Added, Doc: d})
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Watch{
		query:  q,
		ch:     make(chan Batch, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.run(ctx, db, sub, known, initial)
	return w, nil
}

// C returns the batch channel.
func (w *Watch) C() <-chan Batch { return w.ch }

// Name returns the query name.
func (w *Watch) Name() string { return w.query.Name }

// Close stops the watch and waits for its goroutine to exit.
func (w *Watch) Close() {
	w.cancel()
	<-w.done
}

func (w *Watch) run(ctx context.Context, db *DB, sub *bus.Subscription, known map[string]Document, initial Batch) {
	defer close(w.done)
	defer close(w.ch)
	defer sub.Close()

	if !w.send(ctx, initial) {
		return
	}

	ticker := time.NewTicker(ResyncInterval)
	defer ticker.Stop()

	var seen uint64
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-sub.C():
			b, ok := evt.Payload.(Batch)
			if !ok {
				continue
			}
			if out := w.apply(known, b); len(out.Changes) > 0 && !w.send(ctx, out) {
				return
			}
		case <-ticker.C:
		}

		if dropped := sub.Dropped(); dropped != seen {
			// Queued events predate the re-read and would roll it back.
			drain(sub)
			out, err := w.resync(ctx, db, known)
			if err != nil {
				// Retried on the next tick.
				continue
			}
			seen = dropped
			if len(out.Changes) > 0 && !w.send(ctx, out) {
				return
			}
		}
	}
}

func drain(sub *bus.Subscription) {
	for {
		select {
		case <-sub.C():
		default:
			return
		}
	}
}

func (w *Watch) send(ctx context.Context, b Batch) bool {
	select {
	case w.ch <- b:
		return true
	case <-ctx.Done():
		return false
	}
}

// apply narrows a committed batch to this watch's result set.
func (w *Watch) apply(known map[string]Document, b Batch) Batch {
	out := Batch{Collection: w.query.Collection}
	for _, c := range b.Changes {
		id := c.Doc.DocID()
		prev, wasKnown := known[id]
		switch {
		case c.Type == Removed:
			if wasKnown {
				delete(known, id)
				out.Changes = append(out.Changes, Change{Type: Removed, Doc: prev})
			}
		case w.query.Match(c.Doc):
			if wasKnown && reflect.DeepEqual(prev, c.Doc) {
				continue
			}
			known[id] = c.Doc
			t := Added
			if wasKnown {
				t = Modified
			}
			out.Changes = append(out.Changes, Change{Type: t, Doc: c.Doc})
		case wasKnown:
			// No longer matches the query.
			delete(known, id)
			out.Changes = append(out.Changes, Change{Type: Removed, Doc: prev})
		}
	}
	return out
}

// resync re-reads the result set and diffs it against known.
func (w *Watch) resync(ctx context.Context, db *DB, known map[string]Document) (Batch, error) {
	found, err := w.query.Fetch(ctx, db)
	if err != nil {
		return Batch{}, err
	}
	out := Batch{Collection: w.query.Collection}
	present := make(map[string]bool, len(found))
	for _, d := range found {
		id := d.DocID()
		present[id] = true
		prev, ok := known[id]
		switch {
		case !ok:
			out.Changes = append(out.Changes, Change{Type: Added, Doc: d})
		case !reflect.DeepEqual(prev, d):
			out.Changes = append(out.Changes, Change{Type: Modified, Doc: d})
		default:
			continue
		}
		known[id] = d
	}
	for id, prev := range known {
		if !present[id] {
			delete(known, id)
			out.Changes = append(out.Changes, Change{Type: Removed, Doc: prev})
		}
	}
	return out, nil
}
