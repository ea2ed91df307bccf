package handler

import (
	"net/http"

	"github.com/google/uuid"
)

// GetActivity handles GET /activities/{activityID}.
func (s *Server) GetActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "activityID")
	if err != nil {
		respondBadRequest(w, "invalid activity id")
		return
	}

	activity, err := s.activities.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, activity)
}

// DeleteActivity handles DELETE /activities/{activityID}.
func (s *Server) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "activityID")
	if err != nil {
		respondBadRequest(w, "invalid activity id")
		return
	}

	if err := s.activities.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TrimActivity handles POST /activities/{activityID}/trim.
func (s *Server) TrimActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "activityID")
	if err != nil {
		respondBadRequest(w, "invalid activity id")
		return
	}

	var body struct {
		StartIndex int `json:"start_index"`
		EndIndex   int `json:"end_index"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	activity, err := s.activities.Trim(r.Context(), id, body.StartIndex, body.EndIndex)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, activity)
}

// SplitActivity handles POST /activities/{activityID}/split.
func (s *Server) SplitActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "activityID")
	if err != nil {
		respondBadRequest(w, "invalid activity id")
		return
	}

	var body struct {
		SplitIndex int    `json:"split_index"`
		NewName    string `json:"new_name"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	first, second, err := s.activities.Split(r.Context(), id, body.SplitIndex, body.NewName)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"first":  first,
		"second": second,
	})
}

// MergeActivities handles POST /activities/merge.
func (s *Server) MergeActivities(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ActivityIDs   []uuid.UUID `json:"activity_ids"`
		Name          string      `json:"name"`
		KeepOriginals bool        `json:"keep_originals"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	merged, err := s.activities.Merge(r.Context(), body.ActivityIDs, body.Name, body.KeepOriginals)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, merged)
}
