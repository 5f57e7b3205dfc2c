package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Namespaces used across the daemon.
const (
	StorePrefix    = "store."
	SyncPrefix     = "sync."
	PresencePrefix = "presence."
	OutboxPrefix   = "outbox."
)
