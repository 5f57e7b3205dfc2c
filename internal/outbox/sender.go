// Package outbox drains pending conversation touches. A message append
// commits the message together with a pending touch; when the follow-up
// touch fails, the entry stays queued and the Sender retries it here.
package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/batterydied/chatter/internal/apperr"
	"github.com/batterydied/chatter/internal/bus"
	"github.com/batterydied/chatter/internal/store"
)

// Event kinds published by the sender.
const (
	EventRepaired = bus.OutboxPrefix + "touch_repaired"
	EventFailed   = bus.OutboxPrefix + "touch_failed"
	EventDropped  = bus.OutboxPrefix + "touch_dropped"
)

// Toucher advances a conversation's lastMessageTime.
type Toucher interface {
	TouchAt(ctx context.Context, conversationID string, at int64) (*store.Conversation, error)
}

// TouchResult is the payload of outbox events.
type TouchResult struct {
	ConversationID string
	At             int64
	Attempts       int
	Err            string
}

// Sender drains the pending-touch queue.
type Sender struct {
	db          *store.DB
	toucher     Toucher
	bus         *bus.Bus
	logger      *zap.Logger
	interval    time.Duration
	maxAttempts int
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewSender creates a new touch repair sender. An entry that has failed
// maxAttempts times is dropped.
func NewSender(db *store.DB, toucher Toucher, b *bus.Bus, logger *zap.Logger, interval time.Duration, maxAttempts int) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Sender{
		db:          db,
		toucher:     toucher,
		bus:         b,
		logger:      logger,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// Start begins polling the queue.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the sender loop and waits for it to exit.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Entries left by a previous run are drained right away.
	s.ProcessPending(ctx)
	for {
		select {
		case <-ticker.C:
			s.ProcessPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessPending makes one pass over the queue.
func (s *Sender) ProcessPending(ctx context.Context) {
	pending, err := s.db.PendingTouches(ctx, 100)
	if err != nil {
		s.logger.Error("failed to read pending touches", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		_, err := s.toucher.TouchAt(ctx, entry.ConversationID, entry.At)
		switch {
		case err == nil:
			s.logger.Info("conversation touch repaired",
				zap.String("conversation", entry.ConversationID), zap.Int64("at", entry.At))
			s.publish(EventRepaired, entry, nil)

		case apperr.IsNotFound(err):
			// Conversation is gone; nothing left to touch.
			s.drop(ctx, entry, err)

		default:
			s.logger.Warn("conversation touch failed",
				zap.String("conversation", entry.ConversationID), zap.Int("attempts", entry.Attempts+1), zap.Error(err))
			markErr := s.db.Write(ctx, "mark touch failed", func(tx *store.Tx) error {
				return tx.MarkTouchFailed(ctx, entry.ConversationID, err.Error())
			})
			if markErr != nil {
				s.logger.Error("failed to record touch failure", zap.Error(markErr))
			}
			entry.Attempts++
			s.publish(EventFailed, entry, err)
			if s.maxAttempts > 0 && entry.Attempts >= s.maxAttempts {
				s.drop(ctx, entry, err)
			}
		}
	}
}

func (s *Sender) drop(ctx context.Context, entry *store.PendingTouch, cause error) {
	err := s.db.Write(ctx, "drop touch", func(tx *store.Tx) error {
		return tx.DeletePendingTouch(ctx, entry.ConversationID)
	})
	if err != nil {
		s.logger.Error("failed to drop pending touch", zap.String("conversation", entry.ConversationID), zap.Error(err))
		return
	}
	s.logger.Warn("pending touch dropped",
		zap.String("conversation", entry.ConversationID), zap.Int("attempts", entry.Attempts), zap.Error(cause))
	s.publish(EventDropped, entry, cause)
}

func (s *Sender) publish(kind string, entry *store.PendingTouch, err error) {
	res := TouchResult{ConversationID: entry.ConversationID, At: entry.At, Attempts: entry.Attempts}
	if err != nil {
		res.Err = err.Error()
	}
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: res})
}
