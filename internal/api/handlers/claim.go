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

type ClaimHandler struct {
	svc   *service.ClaimService
	ghost *service.GhostService
}

func NewClaimHandler(svc *service.ClaimService, ghost *service.GhostService) *ClaimHandler {
	return &ClaimHandler{svc: svc, ghost: ghost}
}

type createClaimRequest struct {
	Body          string `json:"body"`
	ParentClaimID string `json:"parent_claim_id,omitempty"`
	WindowHours   int    `json:"window_hours,omitempty"`
}

type castVoteRequest struct {
	Value int `json:"value"`
}

func (h *ClaimHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var parentID *uuid.UUID
	if req.ParentClaimID != "" {
		id, err := uuid.Parse(req.ParentClaimID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid parent_claim_id")
			return
		}
		parentID = &id
	}

	community := chi.URLParam(r, "community")
	authorID := middleware.ParticipantFromContext(r.Context())

	claim, err := h.svc.Post(r.Context(), community, authorID, req.Body, parentID, req.WindowHours)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClaimBodyEmpty),
			errors.Is(err, service.ErrInvalidWindowHours):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create claim")
		}
		return
	}

	writeJSON(w, http.StatusCreated, claim)
}

func (h *ClaimHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, err := h.svc.List(r.Context(), chi.URLParam(r, "community"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list claims")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"claims": claims})
}

func (h *ClaimHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	claim, err := h.svc.Get(r.Context(), chi.URLParam(r, "community"), id)
	if err != nil {
		if errors.Is(err, service.ErrClaimNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get claim")
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

func (h *ClaimHandler) Vote(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
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
		case errors.Is(err, service.ErrClaimNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidVote):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrWindowClosed):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to cast vote")
		}
		return
	}

	writeJSON(w, http.StatusOK, vote)
}

// Ghost retracts a claim. The claim stays retrievable by id but drops
// out of listings, and any karma it paid out is reversed.
func (h *ClaimHandler) Ghost(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	if err := h.ghost.Ghost(r.Context(), chi.URLParam(r, "community"), id); err != nil {
		if errors.Is(err, service.ErrClaimNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to ghost claim")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ghost"})
}
