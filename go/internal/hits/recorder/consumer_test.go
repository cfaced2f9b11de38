package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woodfish/muyu/go/internal/hits"
	"github.com/woodfish/muyu/go/internal/tap"
)

type fakeRecorder struct {
	batches []hits.HitBatch
	err     error
}

func (f *fakeRecorder) RecordBatch(ctx context.Context, batch hits.HitBatch) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.batches = append(f.batches, batch)
	return int64(len(batch.Clicks)), nil
}

// roomlessRepo rejects every room the way the hits.room_id foreign key does
// for rooms that do not exist
type roomlessRepo struct {
	stored []hits.Hit
}

func (r *roomlessRepo) InsertHits(ctx context.Context, batch []hits.Hit) (int64, error) {
	for _, h := range batch {
		if h.RoomID.Valid {
			return 0, &pgconn.PgError{Code: "23503"}
		}
	}
	r.stored = append(r.stored, batch...)
	return int64(len(batch)), nil
}

func (r *roomlessRepo) CountHits(ctx context.Context) (int64, error) {
	return int64(len(r.stored)), nil
}

func (r *roomlessRepo) CountRoomHits(ctx context.Context, roomID uuid.UUID) (int64, error) {
	return 0, nil
}

func TestHandle(t *testing.T) {
	user := uuid.New()
	valid := `{"connectionId":"c1","userId":"` + user.String() + `","roomId":null,` +
		`"clicks":[{"timestamp":1},{"timestamp":2}],"receivedAt":"2024-01-01T00:00:00Z"}`

	t.Run("records batch", func(t *testing.T) {
		rec := &fakeRecorder{}
		c := &Consumer{recorder: rec}

		require.NoError(t, c.handle(context.Background(), []byte(valid)))
		require.Len(t, rec.batches, 1)
		assert.Equal(t, user, rec.batches[0].UserID)
		assert.Equal(t, []tap.Event{{Timestamp: 1}, {Timestamp: 2}}, rec.batches[0].Clicks)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rec.batches[0].ReceivedAt)
	})

	t.Run("garbage is poison", func(t *testing.T) {
		c := &Consumer{recorder: &fakeRecorder{}}
		err := c.handle(context.Background(), []byte("{"))
		assert.ErrorIs(t, err, errPoison)
	})

	t.Run("missing user is poison", func(t *testing.T) {
		c := &Consumer{recorder: &fakeRecorder{}}
		err := c.handle(context.Background(), []byte(`{"connectionId":"c1","clicks":[{"timestamp":1}]}`))
		assert.ErrorIs(t, err, errPoison)
	})

	t.Run("store failure is retryable", func(t *testing.T) {
		storeErr := errors.New("connection refused")
		c := &Consumer{recorder: &fakeRecorder{err: storeErr}}
		err := c.handle(context.Background(), []byte(valid))
		require.Error(t, err)
		assert.ErrorIs(t, err, storeErr)
		assert.NotErrorIs(t, err, errPoison)
	})

	t.Run("unknown room is recorded without room", func(t *testing.T) {
		repo := &roomlessRepo{}
		c := &Consumer{recorder: hits.NewApp(repo)}
		body := `{"connectionId":"c1","userId":"` + user.String() + `","roomId":"` + uuid.NewString() + `",` +
			`"clicks":[{"timestamp":1}]}`
		require.NoError(t, c.handle(context.Background(), []byte(body)))
		require.Len(t, repo.stored, 1)
		assert.False(t, repo.stored[0].RoomID.Valid)
	})

	t.Run("empty batch is skipped", func(t *testing.T) {
		rec := &fakeRecorder{}
		c := &Consumer{recorder: rec}
		body := `{"connectionId":"c1","userId":"` + user.String() + `","clicks":[]}`
		require.NoError(t, c.handle(context.Background(), []byte(body)))
		assert.Empty(t, rec.batches)
	})
}
