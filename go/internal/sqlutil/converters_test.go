package sqlutil

import (
	"encoding/json"
	"testing"

	"github.com/sqlc-dev/pqtype"
	"github.com/stretchr/testify/assert"
)

func TestToNullRawMessage(t *testing.T) {
	assert.False(t, ToNullRawMessage(nil).Valid)
	assert.False(t, ToNullRawMessage(json.RawMessage("  null ")).Valid)

	got := ToNullRawMessage(json.RawMessage(` {"theme":"temple"} `))
	assert.True(t, got.Valid)
	assert.JSONEq(t, `{"theme":"temple"}`, string(got.RawMessage))
}

func TestFromNullRawMessage(t *testing.T) {
	assert.Nil(t, FromNullRawMessage(pqtype.NullRawMessage{}))
	assert.Equal(t, json.RawMessage(`[1]`), FromNullRawMessage(pqtype.NullRawMessage{RawMessage: json.RawMessage(`[1]`), Valid: true}))
}
