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

type listingHandler struct {
	db        *store.DB
	ledger    *ledger.Service
	validator *validator.Validate
}

func newListingHandler(db *store.DB, l *ledger.Service) *listingHandler {
	return &listingHandler{db: db, ledger: l, validator: validator.New()}
}

type createListingRequest struct {
	Title            string          `json:"title" validate:"required"`
	Type             string          `json:"type" validate:"required,oneof=BUY_SELL SERVICES JOBS PROPERTY PROMOTION"`
	Category         string          `json:"category"`
	ShortDescription string          `json:"shortDescription"`
	Description      string          `json:"description"`
	Price            decimal.Decimal `json:"price"`
	Negotiable       bool            `json:"negotiable"`
	Images           []string        `json:"images"`
	Location         string          `json:"location"`
	OwnerName        string          `json:"ownerName"`
	WhatsApp         string          `json:"whatsapp"`
	InAppChat        bool            `json:"inAppChat"`
}

func (h *listingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	if !req.Negotiable && !req.Price.IsPositive() {
		response.BadRequest(w, "price must be positive unless the listing is negotiable")
		return
	}

	l := &store.Listing{
		ID:               uuid.NewString(),
		OwnerID:          middleware.GetUserID(r),
		OwnerName:        req.OwnerName,
		Type:             req.Type,
		Category:         req.Category,
		Title:            req.Title,
		ShortDescription: req.ShortDescription,
		Description:      req.Description,
		Price:            req.Price,
		Negotiable:       req.Negotiable,
		Images:           req.Images,
		Location:         req.Location,
		WhatsApp:         req.WhatsApp,
		InAppChat:        req.InAppChat,
	}
	if err := h.db.SaveListing(l); err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Created(w, l)
}

func (h *listingHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		listings []store.Listing
		err      error
	)
	if owner := r.URL.Query().Get("owner"); owner != "" {
		listings, err = h.db.ListListingsByOwner(owner)
	} else {
		listings, err = h.db.ListListings()
	}
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, listings)
}

func (h *listingHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.db.GetListing(mux.Vars(r)["id"])
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	if l == nil {
		response.NotFound(w, "listing not found")
		return
	}
	response.Success(w, l)
}

func (h *listingHandler) Boost(w http.ResponseWriter, r *http.Request) {
	tx, err := h.ledger.PayForBoost(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"])
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	response.Success(w, tx)
}

// View bumps the view counter. High-frequency path: no sync, no
// change event, so it never answers with the updated listing.
func (h *listingHandler) View(w http.ResponseWriter, r *http.Request) {
	if err := h.db.IncrementViews(mux.Vars(r)["id"]); err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, nil)
}

func (h *listingHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	l, err := h.db.GetListing(mux.Vars(r)["id"])
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	if l == nil {
		response.NotFound(w, "listing not found")
		return
	}
	favorited, err := h.db.ToggleFavorite(l)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, map[string]bool{"favorited": favorited})
}

func (h *listingHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := h.db.ListFavorites()
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, favorites)
}
