package hits

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Querier defines what the repository needs from pgx. *pgxpool.Pool satisfies it.
type Querier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements hit persistence on top of pgx
type Repository struct {
	db Querier
}

// NewRepository creates a new hits repository
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

var hitColumns = []string{"user_id", "room_id", "timestamp"}

// InsertHits bulk inserts hits with COPY
func (r *Repository) InsertHits(ctx context.Context, hits []Hit) (int64, error) {
	if len(hits) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(hits))
	for _, h := range hits {
		rows = append(rows, []any{
			toPgUUID(uuid.NullUUID{UUID: h.UserID, Valid: true}),
			toPgUUID(h.RoomID),
			h.Timestamp,
		})
	}

	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"hits"}, hitColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to copy hits: %w", err)
	}
	return n, nil
}

// CountHits returns the number of persisted hits across all rooms
func (r *Repository) CountHits(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM hits`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count hits: %w", err)
	}
	return count, nil
}

// CountRoomHits returns the number of persisted hits for a room
func (r *Repository) CountRoomHits(ctx context.Context, roomID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM hits WHERE room_id = $1`,
		toPgUUID(uuid.NullUUID{UUID: roomID, Valid: true})).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count room hits: %w", err)
	}
	return count, nil
}

func toPgUUID(id uuid.NullUUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id.UUID, Valid: id.Valid}
}
