package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecer struct {
	existing map[uuid.UUID]bool
	fail     uuid.UUID
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	id := args[0].(uuid.UUID)
	if id == f.fail {
		return pgconn.CommandTag{}, errors.New("constraint violation")
	}
	if f.existing[id] {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	f.existing[id] = true
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestSeedCounts(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	db := &fakeExecer{existing: map[uuid.UUID]bool{b: true}, fail: c}

	s := seed(context.Background(), db, []seedRoom{{ID: a, Name: "a"}, {ID: b, Name: "b"}, {ID: c, Name: "c"}})
	assert.Equal(t, summary{total: 3, inserted: 1, skipped: 1, errs: 1}, s)

	s = seed(context.Background(), db, []seedRoom{{ID: a, Name: "a"}})
	assert.Equal(t, summary{total: 1, skipped: 1}, s)
}

func TestLoadRooms(t *testing.T) {
	rooms, err := loadRooms(filepath.Join("..", "..", "assets", "rooms.json"))
	require.NoError(t, err)
	require.NotEmpty(t, rooms)
	assert.Equal(t, "Lobby", rooms[0].Name)
	assert.JSONEq(t, `{"description":"Everyone taps here by default"}`, string(rooms[0].Metadata))

	bad := filepath.Join(t.TempDir(), "rooms.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o600))
	_, err = loadRooms(bad)
	assert.Error(t, err)

	_, err = loadRooms(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
