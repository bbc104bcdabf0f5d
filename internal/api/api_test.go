package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amasampo/mesh/internal/bus"
	"github.com/amasampo/mesh/internal/ledger"
	"github.com/amasampo/mesh/internal/store"
	"github.com/amasampo/mesh/pkg/jwt"
	"github.com/amasampo/mesh/pkg/response"
)

const apiTestSecret = "api-test-secret"

type testAPI struct {
	router http.Handler
	db     *store.DB
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	b := bus.New()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"), b)
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := ledger.NewService(db, b, zap.NewNop(), ledger.DefaultPolicy())
	router := NewRouter(Deps{
		DB:        db,
		Ledger:    svc,
		Logger:    zap.NewNop(),
		JWTSecret: apiTestSecret,
	})

	token, err := jwt.GenerateToken("u1", time.Hour, apiTestSecret)
	require.NoError(t, err)
	return &testAPI{router: router, db: db, token: token}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+a.token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var envelope response.Response
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	}
	return rec, envelope
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	a := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	a := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenEndpointIssuesUsableToken(t *testing.T) {
	a := newTestAPI(t)
	rec, envelope := a.do(t, http.MethodPost, "/api/v1/auth/token", map[string]string{"userId": "u9"})
	require.Equal(t, http.StatusOK, rec.Code)
	data := envelope.Data.(map[string]any)
	issued := data["token"].(string)

	claims, err := jwt.ValidateToken(issued, apiTestSecret)
	require.NoError(t, err)
	assert.Equal(t, "u9", claims.UserID)

	refresh := data["refreshToken"].(string)
	claims, err = jwt.ValidateToken(refresh, apiTestSecret)
	require.NoError(t, err)
	assert.Equal(t, "u9", claims.UserID)
}

func TestRefreshEndpointRotatesTokenPair(t *testing.T) {
	a := newTestAPI(t)
	_, envelope := a.do(t, http.MethodPost, "/api/v1/auth/token", map[string]string{"userId": "u9"})
	refresh := envelope.Data.(map[string]any)["refreshToken"].(string)

	rec, envelope := a.do(t, http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	data := envelope.Data.(map[string]any)

	claims, err := jwt.ValidateToken(data["token"].(string), apiTestSecret)
	require.NoError(t, err)
	assert.Equal(t, "u9", claims.UserID)
	claims, err = jwt.ValidateToken(data["refreshToken"].(string), apiTestSecret)
	require.NoError(t, err)
	assert.Equal(t, "u9", claims.UserID)

	rec, _ = a.do(t, http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refreshToken": "not.a.token"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDepositThenBalance(t *testing.T) {
	a := newTestAPI(t)
	rec, _ := a.do(t, http.MethodPost, "/api/v1/wallet/deposit",
		map[string]any{"amount": "150", "provider": "MTN"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, envelope := a.do(t, http.MethodGet, "/api/v1/wallet", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := envelope.Data.(map[string]any)
	assert.Equal(t, "150", fmt.Sprint(data["balance"]))
}

func TestWithdrawInsufficientFundsIs400WithMessage(t *testing.T) {
	a := newTestAPI(t)
	rec, envelope := a.do(t, http.MethodPost, "/api/v1/wallet/withdraw",
		map[string]any{"amount": "10", "provider": "MTN"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, envelope.Error, "insufficient funds")
	assert.Contains(t, envelope.Error, "15", "message carries the total incl. fee")
}

func TestDepositRejectsUnknownProvider(t *testing.T) {
	a := newTestAPI(t)
	rec, _ := a.do(t, http.MethodPost, "/api/v1/wallet/deposit",
		map[string]any{"amount": "10", "provider": "CASH_UNDER_MATTRESS"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListingCreateBoostAndView(t *testing.T) {
	a := newTestAPI(t)
	rec, envelope := a.do(t, http.MethodPost, "/api/v1/listings", map[string]any{
		"title": "Sofa", "type": "BUY_SELL", "price": "900",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	listingID := envelope.Data.(map[string]any)["id"].(string)

	// Not enough funds yet.
	rec, _ = a.do(t, http.MethodPost, "/api/v1/listings/"+listingID+"/boost", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, _ = a.do(t, http.MethodPost, "/api/v1/wallet/deposit",
		map[string]any{"amount": "25", "provider": "MTN"})
	rec, _ = a.do(t, http.MethodPost, "/api/v1/listings/"+listingID+"/boost", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = a.do(t, http.MethodPost, "/api/v1/listings/"+listingID+"/view", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, envelope = a.do(t, http.MethodGet, "/api/v1/listings/"+listingID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := envelope.Data.(map[string]any)
	assert.Equal(t, true, got["isBoosted"])
	assert.Equal(t, float64(1), got["views"])
}

func TestBoostUnknownListingIs404(t *testing.T) {
	a := newTestAPI(t)
	rec, _ := a.do(t, http.MethodPost, "/api/v1/listings/ghost/boost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListingValidation(t *testing.T) {
	a := newTestAPI(t)
	// Missing title.
	rec, _ := a.do(t, http.MethodPost, "/api/v1/listings", map[string]any{
		"type": "BUY_SELL", "price": "100",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Zero price and not negotiable.
	rec, _ = a.do(t, http.MethodPost, "/api/v1/listings", map[string]any{
		"title": "Free stuff", "type": "BUY_SELL", "price": "0",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Zero price but negotiable is fine.
	rec, _ = a.do(t, http.MethodPost, "/api/v1/listings", map[string]any{
		"title": "Make me an offer", "type": "BUY_SELL", "price": "0", "negotiable": true,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandshakeLifecycle(t *testing.T) {
	a := newTestAPI(t)
	rec, envelope := a.do(t, http.MethodPost, "/api/v1/chats", map[string]any{
		"partnerId": "seller-1", "partnerName": "Mama Sarah",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	chatID := envelope.Data.(map[string]any)["id"].(string)

	rec, envelope = a.do(t, http.MethodPost, "/api/v1/handshakes", map[string]any{
		"chatId": chatID, "sellerId": "seller-1", "agreedPrice": "1000",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	hsID := envelope.Data.(map[string]any)["id"].(string)

	// Completing before confirming is a conflict.
	rec, _ = a.do(t, http.MethodPost, "/api/v1/handshakes/"+hsID+"/complete", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = a.do(t, http.MethodPost, "/api/v1/handshakes/"+hsID+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, envelope = a.do(t, http.MethodPost, "/api/v1/handshakes/"+hsID+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := envelope.Data.(map[string]any)
	commission := body["commission"].(map[string]any)
	assert.Equal(t, "20", fmt.Sprint(commission["amount"]))

	// The chat lookup sees the completed handshake.
	rec, envelope = a.do(t, http.MethodGet, "/api/v1/chats/"+chatID+"/handshake", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.HandshakeCompleted, envelope.Data.(map[string]any)["status"])
}

func TestFollowAndFavoriteToggles(t *testing.T) {
	a := newTestAPI(t)
	rec, envelope := a.do(t, http.MethodPost, "/api/v1/follows/u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, envelope.Data.(map[string]any)["following"])

	rec, envelope = a.do(t, http.MethodPost, "/api/v1/follows/u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, envelope.Data.(map[string]any)["following"])

	rec, envelope = a.do(t, http.MethodPost, "/api/v1/listings", map[string]any{
		"title": "Sofa", "type": "BUY_SELL", "price": "900",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	listingID := envelope.Data.(map[string]any)["id"].(string)

	rec, envelope = a.do(t, http.MethodPost, "/api/v1/listings/"+listingID+"/favorite", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, envelope.Data.(map[string]any)["favorited"])

	rec, envelope = a.do(t, http.MethodGet, "/api/v1/favorites", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, envelope.Data.([]any), 1)
}

func TestAdminRevenueAfterWithdrawal(t *testing.T) {
	a := newTestAPI(t)
	_, _ = a.do(t, http.MethodPost, "/api/v1/wallet/deposit",
		map[string]any{"amount": "100", "provider": "MTN"})
	rec, _ := a.do(t, http.MethodPost, "/api/v1/wallet/withdraw",
		map[string]any{"amount": "40", "provider": "MTN"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, envelope := a.do(t, http.MethodGet, "/api/v1/admin/revenue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := envelope.Data.(map[string]any)
	assert.Equal(t, "5", fmt.Sprint(data["platformRevenue"]))
}

func TestStatusReportsOutboxCounts(t *testing.T) {
	a := newTestAPI(t)
	_, _ = a.do(t, http.MethodPost, "/api/v1/listings", map[string]any{
		"title": "Sofa", "type": "BUY_SELL", "price": "900",
	})

	rec, envelope := a.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	outboxStats := envelope.Data.(map[string]any)["outbox"].(map[string]any)
	assert.Equal(t, float64(1), outboxStats["pending"])
	assert.Equal(t, float64(0), outboxStats["deadLetters"])
}
