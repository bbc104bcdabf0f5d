package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/amasampo/mesh/internal/ledger"
	"github.com/amasampo/mesh/internal/middleware"
	"github.com/amasampo/mesh/internal/store"
	"github.com/amasampo/mesh/pkg/response"
)

type handshakeHandler struct {
	db        *store.DB
	ledger    *ledger.Service
	validator *validator.Validate
}

func newHandshakeHandler(db *store.DB, l *ledger.Service) *handshakeHandler {
	return &handshakeHandler{db: db, ledger: l, validator: validator.New()}
}

type createHandshakeRequest struct {
	ChatID      string          `json:"chatId" validate:"required"`
	SellerID    string          `json:"sellerId" validate:"required"`
	ListingID   string          `json:"listingId"`
	AgreedPrice decimal.Decimal `json:"agreedPrice" validate:"required"`
}

func (h *handshakeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createHandshakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	if !req.AgreedPrice.IsPositive() {
		response.BadRequest(w, "agreed price must be positive")
		return
	}

	hs := &store.Handshake{
		ID:          uuid.NewString(),
		ChatID:      req.ChatID,
		SellerID:    req.SellerID,
		BuyerID:     middleware.GetUserID(r),
		ListingID:   req.ListingID,
		AgreedPrice: req.AgreedPrice,
	}
	if err := h.db.SaveHandshake(hs); err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Created(w, hs)
}

func (h *handshakeHandler) GetByChat(w http.ResponseWriter, r *http.Request) {
	hs, err := h.db.GetHandshakeByChat(mux.Vars(r)["id"])
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	if hs == nil {
		response.NotFound(w, "no handshake for chat")
		return
	}
	response.Success(w, hs)
}

// Confirm moves a pending handshake to CONFIRMED. Only the seller side
// matters to the store; the caller is trusted to be a party.
func (h *handshakeHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	hs, err := h.loadStatusTarget(w, r, store.HandshakePending)
	if hs == nil {
		return
	}
	hs.Status = store.HandshakeConfirmed
	if err = h.db.SaveHandshake(hs); err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, hs)
}

// Complete finishes a confirmed handshake and books the platform
// commission against the seller.
func (h *handshakeHandler) Complete(w http.ResponseWriter, r *http.Request) {
	hs, _ := h.loadStatusTarget(w, r, store.HandshakeConfirmed)
	if hs == nil {
		return
	}

	tx, err := h.ledger.FinalizeHandshake(r.Context(), hs.BuyerID, hs.SellerID, hs.AgreedPrice)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	hs.Status = store.HandshakeCompleted
	if err := h.db.SaveHandshake(hs); err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, map[string]any{
		"handshake":  hs,
		"commission": tx,
	})
}

// loadStatusTarget fetches the handshake and rejects the request when
// it is missing or not in the required state. It writes the error
// response itself and returns nil in that case.
func (h *handshakeHandler) loadStatusTarget(w http.ResponseWriter, r *http.Request, required string) (*store.Handshake, error) {
	hs, err := h.db.GetHandshake(mux.Vars(r)["id"])
	if err != nil {
		response.InternalError(w, err.Error())
		return nil, err
	}
	if hs == nil {
		response.NotFound(w, "handshake not found")
		return nil, nil
	}
	if hs.Status != required {
		response.Conflict(w, "handshake is "+hs.Status+", expected "+required)
		return nil, nil
	}
	return hs, nil
}
