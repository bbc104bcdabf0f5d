// Package api is the daemon's HTTP surface. Handlers stay thin:
// decode, validate, call the store or ledger, wrap the result in the
// shared JSON envelope.
package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/amasampo/mesh/internal/ledger"
	"github.com/amasampo/mesh/internal/mesh"
	"github.com/amasampo/mesh/internal/middleware"
	"github.com/amasampo/mesh/internal/outbox"
	"github.com/amasampo/mesh/internal/store"
	"github.com/amasampo/mesh/pkg/response"
)

// Presence reports the node's mesh state for the status endpoint.
type Presence interface {
	Snapshot() mesh.Heartbeat
}

// Deps carries everything the router wires handlers to.
type Deps struct {
	DB        *store.DB
	Ledger    *ledger.Service
	Flusher   *outbox.Flusher
	Presence  Presence
	Relay     http.HandlerFunc
	Logger    *zap.Logger
	JWTSecret string
}

// NewRouter assembles the full route table.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logger(d.Logger))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		response.Success(w, map[string]string{"status": "ok"})
	}).Methods("GET")

	// The relay carries no user payload of its own, peers authenticate
	// the events they relay, so it sits outside the auth fence.
	if d.Relay != nil {
		r.HandleFunc("/ws", d.Relay)
	}

	auth := newAuthHandler(d.JWTSecret)
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auth/token", auth.Issue).Methods("POST")
	api.HandleFunc("/auth/refresh", auth.Refresh).Methods("POST")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth(d.JWTSecret))

	wallet := newWalletHandler(d.DB, d.Ledger)
	protected.HandleFunc("/wallet", wallet.Get).Methods("GET")
	protected.HandleFunc("/wallet/deposit", wallet.Deposit).Methods("POST")
	protected.HandleFunc("/wallet/withdraw", wallet.Withdraw).Methods("POST")
	protected.HandleFunc("/wallet/transactions", wallet.Transactions).Methods("GET")

	listings := newListingHandler(d.DB, d.Ledger)
	protected.HandleFunc("/listings", listings.Create).Methods("POST")
	protected.HandleFunc("/listings", listings.List).Methods("GET")
	protected.HandleFunc("/listings/{id}", listings.Get).Methods("GET")
	protected.HandleFunc("/listings/{id}/boost", listings.Boost).Methods("POST")
	protected.HandleFunc("/listings/{id}/view", listings.View).Methods("POST")
	protected.HandleFunc("/listings/{id}/favorite", listings.ToggleFavorite).Methods("POST")
	protected.HandleFunc("/favorites", listings.Favorites).Methods("GET")

	chats := newChatHandler(d.DB)
	protected.HandleFunc("/chats", chats.Create).Methods("POST")
	protected.HandleFunc("/chats", chats.List).Methods("GET")
	protected.HandleFunc("/chats/{id}/messages", chats.SendMessage).Methods("POST")
	protected.HandleFunc("/chats/{id}/messages", chats.Messages).Methods("GET")

	handshakes := newHandshakeHandler(d.DB, d.Ledger)
	protected.HandleFunc("/handshakes", handshakes.Create).Methods("POST")
	protected.HandleFunc("/chats/{id}/handshake", handshakes.GetByChat).Methods("GET")
	protected.HandleFunc("/handshakes/{id}/confirm", handshakes.Confirm).Methods("POST")
	protected.HandleFunc("/handshakes/{id}/complete", handshakes.Complete).Methods("POST")

	social := newSocialHandler(d.DB)
	protected.HandleFunc("/clips", social.CreateClip).Methods("POST")
	protected.HandleFunc("/clips", social.Clips).Methods("GET")
	protected.HandleFunc("/stories", social.CreateStory).Methods("POST")
	protected.HandleFunc("/stories", social.Stories).Methods("GET")
	protected.HandleFunc("/follows/{id}", social.ToggleFollow).Methods("POST")
	protected.HandleFunc("/follows", social.Follows).Methods("GET")

	admin := newAdminHandler(d.DB)
	protected.HandleFunc("/admin/revenue", admin.Revenue).Methods("GET")
	protected.HandleFunc("/admin/verify/{id}", admin.SetVerified).Methods("POST")

	status := newStatusHandler(d.DB, d.Presence, d.Flusher)
	protected.HandleFunc("/status", status.Get).Methods("GET")
	protected.HandleFunc("/sync/flush", status.Flush).Methods("POST")

	return r
}

// writeLedgerError maps ledger failures onto HTTP statuses. Validation
// failures carry their exact message so clients can show it verbatim.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrListingNotFound):
		response.NotFound(w, err.Error())
	case ledger.IsValidation(err):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ledger.ErrWalletBusy):
		response.Conflict(w, err.Error())
	default:
		response.InternalError(w, err.Error())
	}
}
