package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/woodfish/muyu/go/internal/httpjson"
)

const maxBodyBytes = 1 << 20

// RoomsApp defines what the service layer needs from the rooms application
type RoomsApp interface {
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	UpdateRoom(ctx context.Context, id uuid.UUID, req UpdateRoomRequest) (*Room, error)
	DeleteRoom(ctx context.Context, id uuid.UUID) (*Room, error)
}

// Service exposes room CRUD over HTTP
type Service struct {
	app RoomsApp
}

// NewService creates a new rooms HTTP service
func NewService(app RoomsApp) *Service {
	return &Service{app: app}
}

// RegisterRoutes registers the room routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /rooms", s.HandleCreate)
	mux.HandleFunc("GET /rooms", s.HandleList)
	mux.HandleFunc("GET /rooms/{id}", s.HandleGet)
	mux.HandleFunc("PUT /rooms/{id}", s.HandleUpdate)
	mux.HandleFunc("DELETE /rooms/{id}", s.HandleDelete)
}

// HandleCreate handles POST /rooms
func (s *Service) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if !decodeBody(w, r, &req) {
		return
	}

	room, err := s.app.CreateRoom(r.Context(), req)
	if err != nil {
		writeError(w, err, "failed to create room")
		return
	}
	httpjson.Success(w, http.StatusCreated, room)
}

// HandleList handles GET /rooms
func (s *Service) HandleList(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.app.ListRooms(r.Context())
	if err != nil {
		writeError(w, err, "failed to list rooms")
		return
	}
	if rooms == nil {
		rooms = []Room{}
	}
	httpjson.Success(w, http.StatusOK, rooms)
}

// HandleGet handles GET /rooms/{id}
func (s *Service) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	room, err := s.app.GetRoom(r.Context(), id)
	if err != nil {
		writeError(w, err, "failed to get room")
		return
	}
	httpjson.Success(w, http.StatusOK, room)
}

// HandleUpdate handles PUT /rooms/{id}
func (s *Service) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateRoomRequest
	if !decodeBody(w, r, &req) {
		return
	}

	room, err := s.app.UpdateRoom(r.Context(), id, req)
	if err != nil {
		writeError(w, err, "failed to update room")
		return
	}
	httpjson.Success(w, http.StatusOK, room)
}

// HandleDelete handles DELETE /rooms/{id}
func (s *Service) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	room, err := s.app.DeleteRoom(r.Context(), id)
	if err != nil {
		writeError(w, err, "failed to delete room")
		return
	}
	httpjson.Success(w, http.StatusOK, room)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		// Any malformed id cannot name an existing room
		httpjson.Error(w, http.StatusNotFound, ErrNotFound.Error())
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, ErrValidation):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, ErrNotFound.Error())
	default:
		log.Error().Err(err).Msg(message)
		httpjson.Error(w, http.StatusInternalServerError, message)
	}
}
