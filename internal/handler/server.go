// Package handler implements the HTTP handlers for the track pipeline API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (journey.go, activity.go, upload.go) but all share the same Server
// struct so they can access its dependencies.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/okranz/tracklog/internal/domain"
	"github.com/okranz/tracklog/internal/ingest"
)

// JourneyServicer defines the journey operations the handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type JourneyServicer interface {
	Create(ctx context.Context, journey domain.Journey) (domain.Journey, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Journey, error)
	List(ctx context.Context) ([]domain.Journey, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ActivityServicer defines the activity read/edit operations the handlers
// depend on.
type ActivityServicer interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Activity, error)
	ListByJourneyID(ctx context.Context, journeyID uuid.UUID) ([]domain.Activity, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Trim(ctx context.Context, id uuid.UUID, startIndex, endIndex int) (domain.Activity, error)
	Split(ctx context.Context, id uuid.UUID, splitIndex int, newName string) (domain.Activity, domain.Activity, error)
	Merge(ctx context.Context, ids []uuid.UUID, mergedName string, keepOriginals bool) (domain.Activity, error)
}

// Ingestor accepts a batch of upload jobs and returns the pending activity
// placeholders; processing continues in the background.
type Ingestor interface {
	Submit(ctx context.Context, jobs []ingest.Job) ([]domain.Activity, <-chan ingest.Result)
}

// Server holds the dependencies for all API endpoints.
type Server struct {
	journeys   JourneyServicer
	activities ActivityServicer
	ingestor   Ingestor
}

// NewServer constructs the Server with all its dependencies.
func NewServer(journeys JourneyServicer, activities ActivityServicer, ingestor Ingestor) *Server {
	return &Server{journeys: journeys, activities: activities, ingestor: ingestor}
}

// Routes returns the API route tree. Cross-cutting middleware (request ID,
// logging, CORS, body-size limits) is wired by the caller so tests can mount
// the bare routes.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.Health)

	r.Route("/journeys", func(r chi.Router) {
		r.Post("/", s.CreateJourney)
		r.Get("/", s.ListJourneys)
		r.Route("/{journeyID}", func(r chi.Router) {
			r.Get("/", s.GetJourney)
			r.Delete("/", s.DeleteJourney)
			r.Get("/activities", s.ListJourneyActivities)
			r.Post("/activities", s.UploadActivities)
		})
	})

	r.Route("/activities", func(r chi.Router) {
		r.Post("/merge", s.MergeActivities)
		r.Route("/{activityID}", func(r chi.Router) {
			r.Get("/", s.GetActivity)
			r.Delete("/", s.DeleteActivity)
			r.Post("/trim", s.TrimActivity)
			r.Post("/split", s.SplitActivity)
		})
	})

	return r
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
