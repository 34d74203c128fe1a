package httpadapter

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"proofengine/internal/ports"
	"proofengine/internal/services/onboarding"
)

const sessionHeader = "X-Session-ID"

// Server exposes the onboarding wizard over HTTP.
type Server struct {
	onboarding ports.Onboarding
}

func New(svc ports.Onboarding) *Server {
	return &Server{onboarding: svc}
}

// Routes returns a chi.Router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.getHealthz)
	r.Route("/api/onboarding", func(r chi.Router) {
		r.Post("/session", s.postSession)
		r.Post("/founder", s.postFounder)
		r.Post("/venture", s.postVenture)
		r.Post("/team", s.postTeam)
		r.Post("/upload", s.postUpload)
		r.Post("/process", s.postProcess)
		r.Get("/status", s.getStatus)
		r.Post("/start-over", s.postStartOver)
	})
	r.Post("/api/ventures/{ventureID}/documents/{category}", s.postDocument)
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) postSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.onboarding.StartSession(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"sessionId": sess.SessionID,
		"nextStep":  sess.CurrentStep,
	})
}

func (s *Server) postFounder(w http.ResponseWriter, r *http.Request) {
	var in ports.FounderInput
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := s.onboarding.SubmitFounder(r.Context(), r.Header.Get(sessionHeader), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) postVenture(w http.ResponseWriter, r *http.Request) {
	var in ports.VentureInput
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := s.onboarding.SubmitVenture(r.Context(), r.Header.Get(sessionHeader), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) postTeam(w http.ResponseWriter, r *http.Request) {
	var in ports.TeamInput
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := s.onboarding.SubmitTeam(r.Context(), r.Header.Get(sessionHeader), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) postUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing file field", "", false, nil))
		return
	}
	defer file.Close()

	in := ports.UploadInput{
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		SizeBytes:    header.Size,
		Content:      file,
	}
	res, err := s.onboarding.SubmitUpload(r.Context(), r.Header.Get(sessionHeader), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) postProcess(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	res, err := s.onboarding.ProcessScoring(r.Context(), sessionID)
	if err != nil {
		if !onboarding.IsClientError(err) {
			// Transport/API failure: counts toward the attempt counter
			// before surfacing as a step failure.
			if recErr := s.onboarding.RecordFailedAttempt(r.Context(), sessionID); recErr != nil {
				log.Printf("http: record failed attempt: %v", recErr)
			}
			log.Printf("http: scoring failed for session %s: %v", sessionID, err)
			writeJSON(w, http.StatusBadGateway, errorBody(
				"Pitch deck analysis failed. Please try again.", "analysis_failed", true, nil))
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	rep, err := s.onboarding.Status(r.Context(), r.Header.Get(sessionHeader))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) postStartOver(w http.ResponseWriter, r *http.Request) {
	newID, err := s.onboarding.StartOver(r.Context(), r.Header.Get(sessionHeader))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"sessionId": newID,
		"nextStep":  "founder",
	})
}

func (s *Server) postDocument(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing file field", "", false, nil))
		return
	}
	defer file.Close()

	row, err := s.onboarding.UploadDocument(r.Context(),
		chi.URLParam(r, "ventureID"), chi.URLParam(r, "category"),
		ports.UploadInput{
			OriginalName: header.Filename,
			MimeType:     header.Header.Get("Content-Type"),
			SizeBytes:    header.Size,
			Content:      file,
		})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"uploadId": row.ID,
		"status":   row.Status,
		"canRetry": row.CanRetry,
		"url":      row.SharedURL,
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case onboarding.IsConflictError(err):
		writeJSON(w, http.StatusConflict, errorBody(err.Error(), "conflict", false, nil))
	case onboarding.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error(), "", false, nil))
	case errors.Is(err, ports.ErrSessionConflict):
		writeJSON(w, http.StatusConflict, errorBody(
			"session was modified by another request; reload and retry", "conflict", true, nil))
	default:
		log.Printf("http: internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error", "", false, nil))
	}
}

func errorBody(msg, errorType string, canRetry bool, missing []string) map[string]any {
	body := map[string]any{"error": msg}
	if errorType != "" {
		body["errorType"] = errorType
	}
	if canRetry {
		body["canRetry"] = true
	}
	if len(missing) > 0 {
		body["missingData"] = missing
	}
	return body
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body", "", false, nil))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}
