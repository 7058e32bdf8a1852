package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"harness/internal/domain/execution"
	"harness/internal/ports"
)

type runRequest struct {
	ID        string               `json:"id"`
	Code      string               `json:"code"`
	Language  string               `json:"language"`
	TestCases []execution.TestCase `json:"testCases"`
}

type languagesResponse struct {
	Languages []execution.Language `json:"languages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	runner       ports.TestRunner
	maxBodyBytes int64
	logger       zerolog.Logger
}

func (h *handler) run(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req runRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Language) == "" {
		writeError(w, http.StatusBadRequest, "language is required")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	summary := h.runner.Run(r.Context(), execution.ExecutionRequest{
		ID:        req.ID,
		Language:  resolveLanguage(req.Language),
		Code:      req.Code,
		TestCases: req.TestCases,
	})

	h.logger.Debug().
		Str("request_id", req.ID).
		Bool("all_passed", summary.AllPassed).
		Msg("served run request")

	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) languages(w http.ResponseWriter, _ *http.Request) {
	langs := h.runner.Languages()
	if langs == nil {
		langs = []execution.Language{}
	}
	writeJSON(w, http.StatusOK, languagesResponse{Languages: langs})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// resolveLanguage maps aliases to their canonical language and leaves anything
// else untouched so the results name what the caller asked for.
func resolveLanguage(raw string) execution.Language {
	if lang, err := execution.ParseLanguage(raw); err == nil {
		return lang
	}
	return execution.Language(strings.TrimSpace(raw))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
