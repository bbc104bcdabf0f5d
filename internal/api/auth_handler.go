package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/amasampo/mesh/pkg/jwt"
	"github.com/amasampo/mesh/pkg/response"
)

// authHandler mints bearer tokens. There is no user database behind
// it; any user id gets a token signed with the node secret.
type authHandler struct {
	secret    string
	validator *validator.Validate
}

func newAuthHandler(secret string) *authHandler {
	return &authHandler{secret: secret, validator: validator.New()}
}

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour
)

type tokenRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (h *authHandler) tokenPair(userID string) (map[string]string, error) {
	token, err := jwt.GenerateToken(userID, accessTokenTTL, h.secret)
	if err != nil {
		return nil, err
	}
	refresh, err := jwt.GenerateRefreshToken(userID, refreshTokenTTL, h.secret)
	if err != nil {
		return nil, err
	}
	return map[string]string{"token": token, "refreshToken": refresh}, nil
}

func (h *authHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	pair, err := h.tokenPair(req.UserID)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, pair)
}

// Refresh trades a valid refresh token for a fresh access/refresh pair.
func (h *authHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	claims, err := jwt.ValidateToken(req.RefreshToken, h.secret)
	if err != nil {
		response.Unauthorized(w, "Invalid or expired refresh token")
		return
	}

	pair, err := h.tokenPair(claims.UserID)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, pair)
}
