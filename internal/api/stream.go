package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-auction/internal/identity"
)

// StreamBids pushes live price updates for one auction over SSE until
// the client disconnects. EventSource cannot set request headers, so the
// token may ride in the query string instead of the Authorization header.
func (h *Handler) StreamBids(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionId")

	token := r.URL.Query().Get("token")
	if token == "" {
		var err error
		token, err = identity.ExtractTokenFromRequest(r)
		if err != nil {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
	}
	userID, err := identity.ExtractUserIDFromJWT(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	h.Log.Info("SSE", fmt.Sprintf("user %s streaming auction %s", userID, auctionID))

	updates := h.Emitter.Subscribe(r.Context(), auctionID)
	for update := range updates {
		payload, err := json.Marshal(update)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}
