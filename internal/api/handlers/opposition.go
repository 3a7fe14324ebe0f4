package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rumornet/arbiter/internal/api/middleware"
	"github.com/rumornet/arbiter/internal/service"
)

type OppositionHandler struct {
	svc *service.OppositionService
}

func NewOppositionHandler(svc *service.OppositionService) *OppositionHandler {
	return &OppositionHandler{svc: svc}
}

type createOppositionRequest struct {
	WindowHours int `json:"window_hours"`
}

func (h *OppositionHandler) Create(w http.ResponseWriter, r *http.Request) {
	claimID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	var req createOppositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	community := chi.URLParam(r, "community")
	challengerID := middleware.ParticipantFromContext(r.Context())

	opp, err := h.svc.Create(r.Context(), community, claimID, challengerID, req.WindowHours)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClaimNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidWindow):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrClaimNotFact),
			errors.Is(err, service.ErrAlreadyOpposed):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrInsufficientKarma):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create opposition")
		}
		return
	}

	writeJSON(w, http.StatusCreated, opp)
}

func (h *OppositionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid opposition id")
		return
	}

	opp, err := h.svc.Get(r.Context(), chi.URLParam(r, "community"), id)
	if err != nil {
		if errors.Is(err, service.ErrOppositionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get opposition")
		return
	}

	writeJSON(w, http.StatusOK, opp)
}

func (h *OppositionHandler) Vote(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid opposition id")
		return
	}

	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	community := chi.URLParam(r, "community")
	voterID := middleware.ParticipantFromContext(r.Context())

	vote, err := h.svc.Vote(r.Context(), community, id, voterID, req.Value)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOppositionNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidVote):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrOppositionClosed):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to cast vote")
		}
		return
	}

	writeJSON(w, http.StatusOK, vote)
}
