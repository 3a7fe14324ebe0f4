package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rumornet/arbiter/internal/domain"
	"github.com/rumornet/arbiter/internal/service"
)

type KarmaHandler struct {
	svc *service.KarmaService
}

func NewKarmaHandler(svc *service.KarmaService) *KarmaHandler {
	return &KarmaHandler{svc: svc}
}

type karmaResponse struct {
	Community     string  `json:"community"`
	ParticipantID string  `json:"participant_id"`
	Karma         float64 `json:"karma"`
	VoteWeight    float64 `json:"vote_weight"`
}

// Get returns the participant's karma and derived vote weight.
// Participants who have never earned or lost karma report the initial
// balance; the endpoint never 404s.
func (h *KarmaHandler) Get(w http.ResponseWriter, r *http.Request) {
	community := chi.URLParam(r, "community")
	participantID := chi.URLParam(r, "id")

	karma, err := h.svc.Get(r.Context(), community, participantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get karma")
		return
	}

	writeJSON(w, http.StatusOK, karmaResponse{
		Community:     community,
		ParticipantID: participantID,
		Karma:         karma,
		VoteWeight:    domain.VoteWeight(karma),
	})
}
