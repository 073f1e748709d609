package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryQueueItem is one pending outbound delivery to a remote inbox.
type DeliveryQueueItem struct {
	Id           uuid.UUID
	InboxURI     string
	ActorURI     string // signing identity for this delivery
	ActivityJSON string
	Attempts     int
	NextRetryAt  time.Time
	CreatedAt    time.Time
}
