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

type socialHandler struct {
	db        *store.DB
	validator *validator.Validate
}

func newSocialHandler(db *store.DB) *socialHandler {
	return &socialHandler{db: db, validator: validator.New()}
}

type createClipRequest struct {
	VideoURL  string `json:"videoUrl" validate:"required,url"`
	Caption   string `json:"caption"`
	ListingID string `json:"listingId"`
	OwnerName string `json:"ownerName"`
}

func (h *socialHandler) CreateClip(w http.ResponseWriter, r *http.Request) {
	var req createClipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	c := &store.Clip{
		ID:        uuid.NewString(),
		OwnerID:   middleware.GetUserID(r),
		OwnerName: req.OwnerName,
		VideoURL:  req.VideoURL,
		Caption:   req.Caption,
		ListingID: req.ListingID,
	}
	if err := h.db.SaveClip(c); err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Created(w, c)
}

func (h *socialHandler) Clips(w http.ResponseWriter, r *http.Request) {
	clips, err := h.db.ListClips()
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, clips)
}

type createStoryRequest struct {
	ImageURL  string `json:"imageUrl" validate:"required,url"`
	OwnerName string `json:"ownerName"`
	IsLive    bool   `json:"isLive"`
}

func (h *socialHandler) CreateStory(w http.ResponseWriter, r *http.Request) {
	var req createStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	s := &store.Story{
		ID:        uuid.NewString(),
		OwnerID:   middleware.GetUserID(r),
		OwnerName: req.OwnerName,
		ImageURL:  req.ImageURL,
		IsLive:    req.IsLive,
	}
	if err := h.db.SaveStory(s); err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Created(w, s)
}

func (h *socialHandler) Stories(w http.ResponseWriter, r *http.Request) {
	stories, err := h.db.ListStories()
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, stories)
}

func (h *socialHandler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	following, err := h.db.ToggleFollow(mux.Vars(r)["id"])
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, map[string]bool{"following": following})
}

func (h *socialHandler) Follows(w http.ResponseWriter, r *http.Request) {
	follows, err := h.db.ListFollows()
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Success(w, follows)
}
