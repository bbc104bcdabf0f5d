package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/amasampo/mesh/internal/ledger"
	"github.com/amasampo/mesh/internal/middleware"
	"github.com/amasampo/mesh/internal/store"
	"github.com/amasampo/mesh/pkg/response"
)

type walletHandler struct {
	db        *store.DB
	ledger    *ledger.Service
	validator *validator.Validate
}

func newWalletHandler(db *store.DB, l *ledger.Service) *walletHandler {
	return &walletHandler{db: db, ledger: l, validator: validator.New()}
}

type moveFundsRequest struct {
	Amount   decimal.Decimal `json:"amount" validate:"required"`
	Provider string          `json:"provider" validate:"required,oneof=MTN AIRTEL WALLET"`
}

func (h *walletHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	balance, err := h.db.GetBalance(userID)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, map[string]any{
		"userId":  userID,
		"balance": balance,
	})
}

func (h *walletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req moveFundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	tx, err := h.ledger.Deposit(r.Context(), middleware.GetUserID(r), req.Amount, req.Provider)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	response.Created(w, tx)
}

func (h *walletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req moveFundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	tx, err := h.ledger.Withdraw(r.Context(), middleware.GetUserID(r), req.Amount, req.Provider)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	response.Created(w, tx)
}

func (h *walletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.db.ListTransactions(middleware.GetUserID(r))
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, txs)
}
