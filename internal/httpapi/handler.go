package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/tracksync/internal/app"
	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/httpapi/dto"
	"github.com/cesargomez89/tracksync/internal/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
	maxBodyBytes     = 1 << 16
)

type Handler struct {
	Runs    *app.Runs
	Session *app.Session
	Logger  *logger.Logger
}

func NewHandler(runs *app.Runs, session *app.Session, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		Runs:    runs,
		Session: session,
		Logger:  log.WithComponent("http"),
	}
}

func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req dto.StartRunRequest
	if !h.decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}

	sum, err := h.Runs.Start(r.Context(), req.Source)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, dto.NewRunResponse(sum, false))
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			h.writeValidation(w, []dto.ValidationError{{Field: "limit", Message: "must be between 1 and " + strconv.Itoa(maxListLimit)}})
			return
		}
		limit = n
	}

	runs, err := h.Runs.List(limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]dto.RunResponse, 0, len(runs))
	for _, s := range runs {
		resp = append(resp, dto.NewRunResponse(s, false))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Runs.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewRunResponse(sum, true))
}

func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Runs.Cancel(id); err != nil {
		h.writeError(w, err)
		return
	}

	sum, err := h.Runs.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, dto.NewRunResponse(sum, false))
}

func (h *Handler) SetToken(w http.ResponseWriter, r *http.Request) {
	var req dto.SetTokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}

	h.Session.SetToken(req.Token)
	h.Logger.Info("Session token updated")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func (h *Handler) writeValidation(w http.ResponseWriter, errs []dto.ValidationError) {
	h.writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Error:  dto.ToResponse(errs),
		Fields: dto.ToMap(errs),
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("Request failed", "error", err)
	}
	h.writeJSON(w, status, dto.ErrorResponse{Error: err.Error(), Hint: domain.Suggestion(err)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Warn("Failed to encode response", "error", err)
	}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRunActive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSourceAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrSourceParse):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSourceUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
