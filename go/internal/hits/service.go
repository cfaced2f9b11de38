package hits

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/woodfish/muyu/go/internal/httpjson"
)

// Counter is what the HTTP layer needs from the app
type Counter interface {
	CountHits(ctx context.Context) (int64, error)
	CountRoomHits(ctx context.Context, roomID uuid.UUID) (int64, error)
}

// CountResponse is the data payload of both count endpoints
type CountResponse struct {
	Count int64 `json:"count"`
}

// Service exposes read-only hit counts over HTTP
type Service struct {
	app Counter
}

// NewService creates a new hits HTTP service
func NewService(app Counter) *Service {
	return &Service{app: app}
}

// RegisterRoutes registers the hit count routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /hits/count", s.HandleCount)
	mux.HandleFunc("GET /rooms/{id}/hits/count", s.HandleRoomCount)
}

// HandleCount handles GET /hits/count
func (s *Service) HandleCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.app.CountHits(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to count hits")
		httpjson.Error(w, http.StatusInternalServerError, "failed to count hits")
		return
	}
	httpjson.Success(w, http.StatusOK, CountResponse{Count: count})
}

// HandleRoomCount handles GET /rooms/{id}/hits/count
func (s *Service) HandleRoomCount(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid room id")
		return
	}

	count, err := s.app.CountRoomHits(r.Context(), roomID)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to count room hits")
		httpjson.Error(w, http.StatusInternalServerError, "failed to count room hits")
		return
	}
	httpjson.Success(w, http.StatusOK, CountResponse{Count: count})
}
