package rooms

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Room is a named space whose taps are counted separately
type Room struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// CreateRoomRequest represents the data needed to create a room
type CreateRoomRequest struct {
	Name     string          `json:"name"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// UpdateRoomRequest replaces the room name. Metadata is left untouched when omitted.
type UpdateRoomRequest struct {
	Name     string          `json:"name"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}
