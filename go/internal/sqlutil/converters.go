package sqlutil

import (
	"bytes"
	"encoding/json"

	"github.com/sqlc-dev/pqtype"
)

// Helper functions for converting between Go types and nullable column types

// ToNullRawMessage converts optional JSON to pqtype.NullRawMessage. Empty input
// and a literal null both map to SQL NULL.
func ToNullRawMessage(val json.RawMessage) pqtype.NullRawMessage {
	trimmed := bytes.TrimSpace(val)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return pqtype.NullRawMessage{Valid: false}
	}
	return pqtype.NullRawMessage{RawMessage: trimmed, Valid: true}
}

// FromNullRawMessage converts pqtype.NullRawMessage to JSON, nil when NULL
func FromNullRawMessage(val pqtype.NullRawMessage) json.RawMessage {
	if !val.Valid {
		return nil
	}
	return val.RawMessage
}
