package rooms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/woodfish/muyu/go/internal/rooms/db"
	"github.com/woodfish/muyu/go/internal/sqlutil"
)

// ErrNotFound is returned when no room has the requested id
var ErrNotFound = errors.New("room not found")

// Querier defines what the repository needs from the database layer
type Querier interface {
	CreateRoom(ctx context.Context, arg db.CreateRoomParams) (db.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (db.Room, error)
	ListRooms(ctx context.Context) ([]db.Room, error)
	UpdateRoom(ctx context.Context, arg db.UpdateRoomParams) (db.Room, error)
	DeleteRoom(ctx context.Context, id uuid.UUID) (db.Room, error)
}

// Repository implements room data access operations
type Repository struct {
	queries Querier
}

// NewRepository creates a new rooms repository
func NewRepository(querier Querier) *Repository {
	return &Repository{
		queries: querier,
	}
}

// CreateRoom creates a new room
func (r *Repository) CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error) {
	dbRoom, err := r.queries.CreateRoom(ctx, db.CreateRoomParams{
		Name:     req.Name,
		Metadata: sqlutil.ToNullRawMessage(req.Metadata),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return dbRoomToModel(dbRoom), nil
}

// GetRoom retrieves a room by ID
func (r *Repository) GetRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	dbRoom, err := r.queries.GetRoom(ctx, id)
	if err != nil {
		return nil, wrapErr("get room", id, err)
	}
	return dbRoomToModel(dbRoom), nil
}

// ListRooms returns every room, newest first
func (r *Repository) ListRooms(ctx context.Context) ([]Room, error) {
	dbRooms, err := r.queries.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	rooms := make([]Room, len(dbRooms))
	for i, dbRoom := range dbRooms {
		rooms[i] = *dbRoomToModel(dbRoom)
	}
	return rooms, nil
}

// UpdateRoom renames a room
func (r *Repository) UpdateRoom(ctx context.Context, id uuid.UUID, req UpdateRoomRequest) (*Room, error) {
	dbRoom, err := r.queries.UpdateRoom(ctx, db.UpdateRoomParams{
		ID:       id,
		Name:     req.Name,
		Metadata: sqlutil.ToNullRawMessage(req.Metadata),
	})
	if err != nil {
		return nil, wrapErr("update room", id, err)
	}
	return dbRoomToModel(dbRoom), nil
}

// DeleteRoom removes a room and returns what was deleted
func (r *Repository) DeleteRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	dbRoom, err := r.queries.DeleteRoom(ctx, id)
	if err != nil {
		return nil, wrapErr("delete room", id, err)
	}
	return dbRoomToModel(dbRoom), nil
}

func wrapErr(op string, id uuid.UUID, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", op, id, ErrNotFound)
	}
	return fmt.Errorf("failed to %s %s: %w", op, id, err)
}

func dbRoomToModel(dbRoom db.Room) *Room {
	return &Room{
		ID:        dbRoom.ID,
		Name:      dbRoom.Name,
		Metadata:  sqlutil.FromNullRawMessage(dbRoom.Metadata),
		CreatedAt: dbRoom.CreatedAt,
	}
}
