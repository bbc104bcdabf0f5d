package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/amasampo/mesh/internal/middleware"
	"github.com/amasampo/mesh/internal/store"
	"github.com/amasampo/mesh/pkg/response"
)

type chatHandler struct {
	db        *store.DB
	validator *validator.Validate
}

func newChatHandler(db *store.DB) *chatHandler {
	return &chatHandler{db: db, validator: validator.New()}
}

type createChatRequest struct {
	PartnerID   string `json:"partnerId" validate:"required"`
	PartnerName string `json:"partnerName" validate:"required"`
	ListingID   string `json:"listingId"`
}

func (h *chatHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	c := &store.ChatSession{
		ID:          uuid.NewString(),
		PartnerID:   req.PartnerID,
		PartnerName: req.PartnerName,
		ListingID:   req.ListingID,
	}
	if err := h.db.SaveChatSession(c); err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Created(w, c)
}

func (h *chatHandler) List(w http.ResponseWriter, r *http.Request) {
	chats, err := h.db.ListChatSessions()
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, chats)
}

type sendMessageRequest struct {
	Body string `json:"body" validate:"required"`
}

func (h *chatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["id"]
	chat, err := h.db.GetChatSession(chatID)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	if chat == nil {
		response.NotFound(w, "chat not found")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	m := &store.Message{
		ChatID:   chatID,
		SenderID: middleware.GetUserID(r),
		Body:     req.Body,
	}
	if err := h.db.SaveMessage(m); err != nil {
		response.InternalError(w, err.Error())
		return
	}

	chat.LastMessage = m.Body
	chat.LastTimestamp = m.Timestamp
	if err := h.db.SaveChatSession(chat); err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Created(w, m)
}

func (h *chatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.db.ListMessages(mux.Vars(r)["id"])
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, msgs)
}
