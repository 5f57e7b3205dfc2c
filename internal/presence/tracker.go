// Package presence aggregates per-session online signals into the
// users.isOnline flag. A user is online iff any of their sessions is.
package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/batterydied/chatter/internal/apperr"
	"github.com/batterydied/chatter/internal/bus"
	"github.com/batterydied/chatter/internal/store"
)

// EventChanged is published when a user's aggregate presence flips.
const EventChanged = bus.PresencePrefix + "changed"

// fireTimeout bounds the offline write made when an armed session ends.
const fireTimeout = 5 * time.Second

// Change is the payload of EventChanged.
type Change struct {
	UserID string
	Online bool
}

// Options tunes the tracker.
type Options struct {
	// SessionTTL is how long an online session survives without a heartbeat.
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

// Tracker writes session records and keeps users.isOnline in step with them.
type Tracker struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	opts   Options

	mu       sync.Mutex
	watchers map[string]chan struct{}
	// armed counts live connections per session; the sweep leaves them alone.
	armed map[sessionKey]int
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	ctx      context.Context
}

// NewTracker creates a presence tracker.
func NewTracker(db *store.DB, logger *zap.Logger, opts Options) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 90 * time.Second
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 15 * time.Second
	}
	return &Tracker{
		db:       db,
		bus:      db.Bus(),
		logger:   logger,
		opts:     opts,
		watchers: make(map[string]chan struct{}),
		armed:    make(map[sessionKey]int),
	}
}

type sessionKey struct{ user, session string }

// Start follows the session feed, recovers sessions a previous run left
// online, and begins sweeping stale sessions.
func (t *Tracker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w, err := t.db.Watch(ctx, store.SessionsQuery())
	if err != nil {
		cancel()
		return err
	}
	t.mu.Lock()
	t.ctx, t.cancel = ctx, cancel
	t.mu.Unlock()

	t.wg.Add(2)
	go t.dispatch(ctx, w)
	go t.sweepLoop(ctx)

	if err := t.recoverSessions(ctx); err != nil {
		t.logger.Error("presence recovery failed", zap.Error(err))
	}
	return nil
}

// Stop halts all presence goroutines.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
}

// SetSession records the state of one session of userID.
func (t *Tracker) SetSession(ctx context.Context, userID, sessionID string, online bool) error {
	const op = "set session"
	if userID == "" || sessionID == "" {
		return apperr.Validation(op, "user and session ids are required")
	}
	state := store.SessionOffline
	if online {
		state = store.SessionOnline
	}
	return t.db.Write(ctx, op, func(tx *store.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.NotFound(op, "user %s", userID)
		}
		return tx.PutSession(ctx, &store.PresenceSession{
			UserID:      userID,
			SessionID:   sessionID,
			State:       state,
			LastChanged: tx.Now(),
		})
	})
}

// Disarm writes the offline record of an armed session.
type Disarm struct {
	t       *Tracker
	userID  string
	session string
	once    sync.Once
	err     error
}

// Arm marks the session online and returns the handle that takes it
// offline again. Fire it from the connection's termination path. An armed
// session is never expired by the sweep.
func (t *Tracker) Arm(ctx context.Context, userID, sessionID string) (*Disarm, error) {
	key := sessionKey{userID, sessionID}
	t.mu.Lock()
	t.armed[key]++
	t.mu.Unlock()
	if err := t.SetSession(ctx, userID, sessionID, true); err != nil {
		t.release(key)
		return nil, err
	}
	return &Disarm{t: t, userID: userID, session: sessionID}, nil
}

func (t *Tracker) release(key sessionKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed[key] <= 1 {
		delete(t.armed, key)
		return
	}
	t.armed[key]--
}

func (t *Tracker) isArmed(userID, sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed[sessionKey{userID, sessionID}] > 0
}

// Fire writes the offline record. Only the first call has an effect; it
// does not depend on the caller's context, which is usually already done.
func (d *Disarm) Fire() error {
	d.once.Do(func() {
		d.t.release(sessionKey{d.userID, d.session})
		ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
		defer cancel()
		d.err = d.t.SetSession(ctx, d.userID, d.session, false)
		if d.err != nil && !apperr.IsNotFound(d.err) {
			d.t.logger.Error("offline write failed", zap.String("user", d.userID), zap.String("session", d.session), zap.Error(d.err))
		}
	})
	return d.err
}

func (t *Tracker) dispatch(ctx context.Context, w *store.Watch) {
	defer t.wg.Done()
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-w.C():
			if !ok {
				return
			}
			for _, c := range b.Changes {
				if s, ok := c.Doc.(*store.PresenceSession); ok {
					t.signal(s.UserID)
				}
			}
		}
	}
}

// signal wakes the watcher of userID, starting one if needed. Pending
// signals coalesce.
func (t *Tracker) signal(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx == nil || t.ctx.Err() != nil {
		return
	}
	ch, ok := t.watchers[userID]
	if !ok {
		ch = make(chan struct{}, 1)
		t.watchers[userID] = ch
		t.wg.Add(1)
		go t.watch(t.ctx, userID, ch)
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// watch serializes reconciles for userID. It exits once the user has no
// online session and no signal is pending; the next signal starts a new one.
func (t *Tracker) watch(ctx context.Context, userID string, ch chan struct{}) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			online, err := t.reconcile(ctx, userID)
			if err != nil {
				if ctx.Err() == nil {
					t.logger.Warn("presence reconcile failed", zap.String("user", userID), zap.Error(err))
				}
				continue
			}
			if !online && t.retire(userID, ch) {
				return
			}
		}
	}
}

// retire removes the watcher of userID unless a signal arrived meanwhile.
func (t *Tracker) retire(userID string, ch chan struct{}) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(ch) > 0 || t.watchers[userID] != ch {
		return false
	}
	delete(t.watchers, userID)
	return true
}

func (t *Tracker) watcherCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.watchers)
}

// reconcile recomputes the aggregate of userID and writes it only when it
// flips. It reports whether any session of the user is online.
func (t *Tracker) reconcile(ctx context.Context, userID string) (bool, error) {
	var flipped, online bool
	err := t.db.Write(ctx, "reconcile presence", func(tx *store.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil || u == nil {
			return err
		}
		sessions, err := tx.SessionsOf(ctx, userID)
		if err != nil {
			return err
		}
		online = false
		for _, s := range sessions {
			if s.State == store.SessionOnline {
				online = true
				break
			}
		}
		if u.IsOnline == online {
			return nil
		}
		u.IsOnline = online
		flipped = true
		return tx.UpdateUser(ctx, u)
	})
	if err != nil || !flipped {
		return online, err
	}
	t.logger.Debug("presence changed", zap.String("user", userID), zap.Bool("online", online))
	t.bus.Publish(bus.Event{
		Kind:      EventChanged,
		Timestamp: time.Now(),
		Payload:   Change{UserID: userID, Online: online},
	})
	return online, nil
}

// recoverSessions takes offline every session a previous run left online, and
// re-checks users whose flag is set.
func (t *Tracker) recoverSessions(ctx context.Context) error {
	stale, err := t.db.OnlineSessions(ctx, 0)
	if err != nil {
		return err
	}
	if n, err := t.expire(ctx, stale); err != nil {
		return err
	} else if n > 0 {
		t.logger.Info("recovered stale sessions", zap.Int("sessions", n))
	}

	ids, err := t.db.OnlineUserIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		t.signal(id)
	}
	return nil
}

func (t *Tracker) sweepLoop(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := t.Sweep(ctx); err != nil {
				t.logger.Warn("presence sweep failed", zap.Error(err))
			} else if n > 0 {
				t.logger.Info("expired idle sessions", zap.Int("sessions", n))
			}
		}
	}
}

// Sweep marks offline every online, unarmed session without a heartbeat
// within the session TTL. It returns how many sessions it expired.
func (t *Tracker) Sweep(ctx context.Context) (int, error) {
	// Session timestamps come from the store clock, so the cutoff does too.
	cutoff := t.db.Now() - t.opts.SessionTTL.Milliseconds()
	stale, err := t.db.OnlineSessions(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	return t.expire(ctx, stale)
}

func (t *Tracker) expire(ctx context.Context, sessions []*store.PresenceSession) (int, error) {
	if len(sessions) == 0 {
		return 0, nil
	}
	var n int
	err := t.db.Write(ctx, "expire sessions", func(tx *store.Tx) error {
		n = 0
		now := tx.Now()
		for _, s := range sessions {
			current, err := tx.SessionsOf(ctx, s.UserID)
			if err != nil {
				return err
			}
			if !unchanged(current, s) {
				// A heartbeat arrived since the read.
				continue
			}
			if t.isArmed(s.UserID, s.SessionID) {
				continue
			}
			n++
			if err := tx.PutSession(ctx, &store.PresenceSession{
				UserID:      s.UserID,
				SessionID:   s.SessionID,
				State:       store.SessionOffline,
				LastChanged: now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func unchanged(current []*store.PresenceSession, s *store.PresenceSession) bool {
	for _, c := range current {
		if c.SessionID == s.SessionID {
			return c.State == s.State && c.LastChanged == s.LastChanged
		}
	}
	return false
}
