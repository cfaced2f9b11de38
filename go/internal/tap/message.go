package tap

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// MessageType is the discriminator carried in the "type" field of every frame
type MessageType string

const (
	MessageTypeInit   MessageType = "init"
	MessageTypeClicks MessageType = "clicks"
)

var (
	// ErrMalformed is returned when a frame is not valid JSON or misses a required field
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownType is returned for well-formed frames with an unrecognised type
	ErrUnknownType = errors.New("unknown message type")
)

// Event is a single tap, stamped by the client that produced it
type Event struct {
	Timestamp int64 `json:"timestamp"` // ms since epoch
}

// NewEvent stamps a tap at the given instant
func NewEvent(at time.Time) Event {
	return Event{Timestamp: at.UnixMilli()}
}

// Time returns the event timestamp as a time.Time
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Batch is a group of taps sent as a single "clicks" frame
type Batch struct {
	Type   MessageType `json:"type"`
	Clicks []Event     `json:"clicks"`
}

// NewBatch wraps events in a clicks frame
func NewBatch(events []Event) Batch {
	if events == nil {
		events = []Event{}
	}
	return Batch{Type: MessageTypeClicks, Clicks: events}
}

// Len returns the number of taps in the batch
func (b Batch) Len() int {
	return len(b.Clicks)
}

// Sorted returns a copy of the batch with its events in ascending timestamp order.
// Equal timestamps keep their wire order.
func (b Batch) Sorted() Batch {
	events := make([]Event, len(b.Clicks))
	copy(events, b.Clicks)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})
	return Batch{Type: MessageTypeClicks, Clicks: events}
}

// Init is sent by the relay once per connection with the current global counter
type Init struct {
	Type        MessageType `json:"type"`
	TotalClicks int64       `json:"totalClicks"`
}

// NewInit builds an init frame
func NewInit(total int64) Init {
	return Init{Type: MessageTypeInit, TotalClicks: total}
}

// Message is a decoded frame: either Init or Batch
type Message interface {
	MessageType() MessageType
}

func (Init) MessageType() MessageType  { return MessageTypeInit }
func (Batch) MessageType() MessageType { return MessageTypeClicks }

// envelope is used to peek the discriminator and detect missing fields
type envelope struct {
	Type        MessageType      `json:"type"`
	TotalClicks *int64           `json:"totalClicks"`
	Clicks      *json.RawMessage `json:"clicks"`
}

// Decode parses a frame received from the wire
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case MessageTypeInit:
		if env.TotalClicks == nil {
			return nil, fmt.Errorf("%w: init without totalClicks", ErrMalformed)
		}
		return NewInit(*env.TotalClicks), nil

	case MessageTypeClicks:
		if env.Clicks == nil {
			return nil, fmt.Errorf("%w: clicks without clicks array", ErrMalformed)
		}
		var events []Event
		if err := json.Unmarshal(*env.Clicks, &events); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return NewBatch(events), nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// Encode serialises an Init or Batch frame
func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s message: %w", msg.MessageType(), err)
	}
	return data, nil
}
