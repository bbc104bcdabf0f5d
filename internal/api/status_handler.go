package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/amasampo/mesh/internal/outbox"
	"github.com/amasampo/mesh/internal/store"
	"github.com/amasampo/mesh/pkg/response"
)

type statusHandler struct {
	db       *store.DB
	presence Presence
	flusher  *outbox.Flusher
}

func newStatusHandler(db *store.DB, p Presence, f *outbox.Flusher) *statusHandler {
	return &statusHandler{db: db, presence: p, flusher: f}
}

func (h *statusHandler) Get(w http.ResponseWriter, r *http.Request) {
	pending, err := h.db.CountOutbox()
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	dead, err := h.db.CountDeadLetters()
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}

	body := map[string]any{
		"outbox": map[string]int{
			"pending":     pending,
			"deadLetters": dead,
		},
	}
	if h.presence != nil {
		body["mesh"] = h.presence.Snapshot()
	}
	response.Success(w, body)
}

// Flush kicks an immediate outbox drain instead of waiting for the
// next poll tick.
func (h *statusHandler) Flush(w http.ResponseWriter, r *http.Request) {
	if h.flusher == nil {
		response.InternalError(w, "sync not running")
		return
	}
	h.flusher.Drain(r.Context())
	response.Success(w, map[string]string{"status": "drained"})
}

type adminHandler struct {
	db *store.DB
}

func newAdminHandler(db *store.DB) *adminHandler {
	return &adminHandler{db: db}
}

func (h *adminHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	platform, err := h.db.GetCounter(store.MetaPlatformRevenue)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	ads, err := h.db.GetCounter(store.MetaAdRevenue)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, map[string]any{
		"platformRevenue": platform,
		"adRevenue":       ads,
	})
}

// SetVerified flags a user as WhatsApp-verified in node metadata.
func (h *adminHandler) SetVerified(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	if err := h.db.SetMetadata(store.MetaWAVerifiedPfx+userID, "true"); err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, map[string]string{"userId": userID, "verified": "true"})
}
