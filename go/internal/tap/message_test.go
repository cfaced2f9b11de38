package tap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    Message
		wantErr error
	}{
		{"init", `{"type":"init","totalClicks":42}`, NewInit(42), nil},
		{"init zero", `{"type":"init","totalClicks":0}`, NewInit(0), nil},
		{"clicks", `{"type":"clicks","clicks":[{"timestamp":5},{"timestamp":3}]}`,
			NewBatch([]Event{{Timestamp: 5}, {Timestamp: 3}}), nil},
		{"empty clicks", `{"type":"clicks","clicks":[]}`, NewBatch(nil), nil},
		{"not json", `not json`, nil, ErrMalformed},
		{"missing type", `{"clicks":[]}`, nil, ErrMalformed},
		{"init without total", `{"type":"init"}`, nil, ErrMalformed},
		{"clicks without array", `{"type":"clicks"}`, nil, ErrMalformed},
		{"clicks null", `{"type":"clicks","clicks":null}`, nil, ErrMalformed},
		{"clicks wrong shape", `{"type":"clicks","clicks":{"timestamp":1}}`, nil, ErrMalformed},
		{"unknown type", `{"type":"hello"}`, nil, ErrUnknownType},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode([]byte(tc.input))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEncodeWireFormat(t *testing.T) {
	data, err := Encode(NewInit(42))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"init","totalClicks":42}`, string(data))

	data, err = Encode(NewBatch([]Event{{Timestamp: 1700000000000}}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"clicks","clicks":[{"timestamp":1700000000000}]}`, string(data))

	data, err = Encode(NewBatch(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"clicks","clicks":[]}`, string(data))
}

func TestBatchSortedIsDeterministic(t *testing.T) {
	orders := [][]Event{
		{{Timestamp: 30}, {Timestamp: 10}, {Timestamp: 20}},
		{{Timestamp: 20}, {Timestamp: 30}, {Timestamp: 10}},
		{{Timestamp: 10}, {Timestamp: 20}, {Timestamp: 30}},
	}
	want := []Event{{Timestamp: 10}, {Timestamp: 20}, {Timestamp: 30}}

	for _, events := range orders {
		original := append([]Event(nil), events...)
		sorted := NewBatch(events).Sorted()
		assert.Equal(t, want, sorted.Clicks)
		assert.Equal(t, original, events, "Sorted must not reorder the source batch")
	}
}
