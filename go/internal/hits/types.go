package hits

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/woodfish/muyu/go/internal/tap"
)

// HitBatch is a batch of taps accepted by the relay together with who sent it.
// It is the payload published to JetStream and consumed by the recorder.
type HitBatch struct {
	ConnectionID string        `json:"connectionId"`
	UserID       uuid.UUID     `json:"userId"`
	RoomID       uuid.NullUUID `json:"roomId"`
	Clicks       []tap.Event   `json:"clicks"`
	ReceivedAt   time.Time     `json:"receivedAt"`
}

// Hit is a single persisted tap
type Hit struct {
	ID        int64         `json:"id"`
	UserID    uuid.UUID     `json:"user_id"`
	RoomID    uuid.NullUUID `json:"room_id"`
	Timestamp time.Time     `json:"timestamp"`
}

// Sink receives accepted batches from the relay. Implementations must not block
// for long; the relay hands batches over from a dedicated goroutine.
type Sink interface {
	Publish(ctx context.Context, batch HitBatch) error
}

// ToHits expands a batch into one Hit per tap
func (b HitBatch) ToHits() []Hit {
	out := make([]Hit, 0, len(b.Clicks))
	for _, click := range b.Clicks {
		ts := click.Time().UTC()
		if click.Timestamp <= 0 {
			ts = b.ReceivedAt.UTC()
		}
		out = append(out, Hit{
			UserID:    b.UserID,
			RoomID:    b.RoomID,
			Timestamp: ts,
		})
	}
	return out
}

// Subject returns the JetStream subject a batch is published on
func (b HitBatch) Subject(prefix string) string {
	if b.RoomID.Valid {
		return prefix + "." + b.RoomID.UUID.String()
	}
	return prefix + ".global"
}
