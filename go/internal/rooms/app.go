package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxNameLength = 100

// ErrValidation marks requests rejected before reaching the store
var ErrValidation = errors.New("validation failed")

// RoomsRepository defines what the app layer needs from the repository
type RoomsRepository interface {
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	UpdateRoom(ctx context.Context, id uuid.UUID, req UpdateRoomRequest) (*Room, error)
	DeleteRoom(ctx context.Context, id uuid.UUID) (*Room, error)
}

// App handles rooms business logic
type App struct {
	repo RoomsRepository
}

// NewApp creates a new rooms App
func NewApp(repo RoomsRepository) *App {
	return &App{repo: repo}
}

// CreateRoom creates a new room with validation
func (a *App) CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error) {
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}
	if err := validateMetadata(req.Metadata); err != nil {
		return nil, err
	}
	req.Name = name

	room, err := a.repo.CreateRoom(ctx, req)
	if err != nil {
		return nil, err
	}

	log.Info().Str("room_id", room.ID.String()).Str("name", room.Name).Msg("room created")
	return room, nil
}

// GetRoom retrieves a room by ID
func (a *App) GetRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	return a.repo.GetRoom(ctx, id)
}

// ListRooms returns every room, newest first
func (a *App) ListRooms(ctx context.Context) ([]Room, error) {
	return a.repo.ListRooms(ctx)
}

// UpdateRoom renames a room with validation
func (a *App) UpdateRoom(ctx context.Context, id uuid.UUID, req UpdateRoomRequest) (*Room, error) {
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}
	if err := validateMetadata(req.Metadata); err != nil {
		return nil, err
	}
	req.Name = name

	return a.repo.UpdateRoom(ctx, id, req)
}

// DeleteRoom removes a room. Recorded hits keep their counts with no room.
func (a *App) DeleteRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	room, err := a.repo.DeleteRoom(ctx, id)
	if err != nil {
		return nil, err
	}

	log.Info().Str("room_id", id.String()).Msg("room deleted")
	return room, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrValidation)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("%w: name must be at most %d characters", ErrValidation, maxNameLength)
	}
	return name, nil
}

func validateMetadata(metadata json.RawMessage) error {
	if len(metadata) == 0 {
		return nil
	}
	if !json.Valid(metadata) {
		return fmt.Errorf("%w: metadata must be valid JSON", ErrValidation)
	}
	return nil
}
