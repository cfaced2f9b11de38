package hits

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// foreignKeyViolation is the Postgres SQLSTATE for a missing referenced row
const foreignKeyViolation = "23503"

// HitsRepository defines what the app layer needs from the repository
type HitsRepository interface {
	InsertHits(ctx context.Context, hits []Hit) (int64, error)
	CountHits(ctx context.Context) (int64, error)
	CountRoomHits(ctx context.Context, roomID uuid.UUID) (int64, error)
}

// App handles hit recording and counting
type App struct {
	repo HitsRepository
}

// NewApp creates a new hits App
func NewApp(repo HitsRepository) *App {
	return &App{repo: repo}
}

// RecordBatch persists every tap of an accepted batch
func (a *App) RecordBatch(ctx context.Context, batch HitBatch) (int64, error) {
	if batch.UserID == uuid.Nil {
		return 0, fmt.Errorf("hit batch from connection %s has no user", batch.ConnectionID)
	}

	n, err := a.repo.InsertHits(ctx, batch.ToHits())
	if err != nil && batch.RoomID.Valid && isForeignKeyViolation(err) {
		// Room unknown or deleted while clients were still in it; keep the hits unattributed
		log.Warn().
			Str("connection_id", batch.ConnectionID).
			Str("room_id", batch.RoomID.UUID.String()).
			Msg("room not found, recording hits without room")
		batch.RoomID = uuid.NullUUID{}
		n, err = a.repo.InsertHits(ctx, batch.ToHits())
	}
	if err != nil {
		return 0, fmt.Errorf("failed to record hit batch: %w", err)
	}

	log.Debug().
		Str("connection_id", batch.ConnectionID).
		Str("user_id", batch.UserID.String()).
		Int64("inserted", n).
		Msg("recorded hit batch")
	return n, nil
}

// Publish implements Sink by recording the batch synchronously. Used when no
// message broker sits between the relay and Postgres.
func (a *App) Publish(ctx context.Context, batch HitBatch) error {
	_, err := a.RecordBatch(ctx, batch)
	return err
}

// CountHits returns the total number of persisted hits
func (a *App) CountHits(ctx context.Context) (int64, error) {
	count, err := a.repo.CountHits(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count hits: %w", err)
	}
	return count, nil
}

// CountRoomHits returns the number of persisted hits for one room
func (a *App) CountRoomHits(ctx context.Context, roomID uuid.UUID) (int64, error) {
	count, err := a.repo.CountRoomHits(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("failed to count hits for room %s: %w", roomID, err)
	}
	return count, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
