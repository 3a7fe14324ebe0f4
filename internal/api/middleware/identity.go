package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

type contextKey string

const participantContextKey contextKey = "participant"

// ParticipantHeader carries the caller's anonymous participant id,
// minted by the external identity service.
const ParticipantHeader = "X-Participant-ID"

// ParticipantFromContext returns the calling participant's id, or ""
// when the request carried none.
func ParticipantFromContext(ctx context.Context) string {
	id, _ := ctx.Value(participantContextKey).(string)
	return id
}

// ParticipantIdentity extracts the participant id header into the
// request context. Issuing and verifying identities happens upstream;
// this service only needs to know who is acting.
func ParticipantIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(ParticipantHeader)
		ctx := context.WithValue(r.Context(), participantContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireParticipant rejects requests without a participant id. Applied
// to the write surface; reads stay anonymous.
func RequireParticipant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ParticipantFromContext(r.Context()) == "" {
			writeError(w, http.StatusUnauthorized, "missing "+ParticipantHeader+" header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
