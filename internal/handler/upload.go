package handler

import (
	"io"
	"net/http"

	"github.com/okranz/tracklog/internal/ingest"
)

// maxUploadMemory is how much of a multipart body stays in memory before
// spilling to temp files. The overall request size is capped separately by
// the max-body-size middleware.
const maxUploadMemory = 8 << 20

// UploadActivities handles POST /journeys/{journeyID}/activities.
//
// Accepts a multipart form with one or more "files" parts. Each file becomes
// its own ingestion job: the response is 202 Accepted with the pending
// activity placeholders, and processing continues in the background. Files in
// one batch are independent — one bad file fails only its own activity.
func (s *Server) UploadActivities(w http.ResponseWriter, r *http.Request) {
	journeyID, err := pathUUID(r, "journeyID")
	if err != nil {
		respondBadRequest(w, "invalid journey id")
		return
	}

	// The journey must exist before we accept files for it.
	if _, err := s.journeys.GetByID(r.Context(), journeyID); err != nil {
		respondError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondBadRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // best-effort temp cleanup

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		respondBadRequest(w, "no files provided")
		return
	}

	jobs := make([]ingest.Job, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			respondBadRequest(w, "unreadable file part: "+fh.Filename)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondBadRequest(w, "unreadable file part: "+fh.Filename)
			return
		}
		jobs = append(jobs, ingest.Job{
			JourneyID:   journeyID,
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	pending, _ := s.ingestor.Submit(r.Context(), jobs)
	respondJSON(w, http.StatusAccepted, map[string]any{
		"activities": pending,
	})
}
