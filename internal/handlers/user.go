package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rentshare/apiserver/internal/services"
)

// UserHandler serves public profiles.
type UserHandler struct {
	userService   *services.UserService
	ratingService *services.RatingService
	logger        *slog.Logger
}

// UserRouter registers public user routes on the given router.
func UserRouter(r chi.Router, userService *services.UserService, ratingService *services.RatingService, logger *slog.Logger) {
	handler := &UserHandler{
		userService:   userService,
		ratingService: ratingService,
		logger:        logger,
	}

	r.Get("/{userID}", handler.GetUser)
	r.Get("/{userID}/reviews", handler.ListReviews)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{Envelope: ok("profile"), User: user})
}

// ListReviews returns the reviews a user received as a seller.
func (h *UserHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reviews, err := h.ratingService.ListForSeller(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list reviews")
		return
	}

	writeJSON(w, http.StatusOK, ReviewListResponse{Envelope: ok("reviews"), Reviews: nonNil(reviews)})
}
