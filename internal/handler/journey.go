package handler

import (
	"net/http"

	"github.com/okranz/tracklog/internal/domain"
)

// CreateJourney handles POST /journeys.
func (s *Server) CreateJourney(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	journey, err := s.journeys.Create(r.Context(), domain.Journey{Name: body.Name})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, journey)
}

// ListJourneys handles GET /journeys.
func (s *Server) ListJourneys(w http.ResponseWriter, r *http.Request) {
	journeys, err := s.journeys.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, journeys)
}

// GetJourney handles GET /journeys/{journeyID}.
func (s *Server) GetJourney(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "journeyID")
	if err != nil {
		respondBadRequest(w, "invalid journey id")
		return
	}

	journey, err := s.journeys.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, journey)
}

// DeleteJourney handles DELETE /journeys/{journeyID}.
func (s *Server) DeleteJourney(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "journeyID")
	if err != nil {
		respondBadRequest(w, "invalid journey id")
		return
	}

	if err := s.journeys.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListJourneyActivities handles GET /journeys/{journeyID}/activities.
func (s *Server) ListJourneyActivities(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "journeyID")
	if err != nil {
		respondBadRequest(w, "invalid journey id")
		return
	}

	activities, err := s.activities.ListByJourneyID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, activities)
}
