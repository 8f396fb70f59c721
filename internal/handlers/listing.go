package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rentshare/apiserver/internal/services"
	"github.com/rentshare/apiserver/types"
)

// ListingHandler provides HTTP handlers for listings and their reviews.
type ListingHandler struct {
	listingService *services.ListingService
	ratingService  *services.RatingService
	logger         *slog.Logger
}

func NewListingHandler(listingService *services.ListingService, ratingService *services.RatingService, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
		ratingService:  ratingService,
		logger:         logger,
	}
}

// ListingRouter registers listing routes on the given router.
func ListingRouter(
	r chi.Router,
	listingService *services.ListingService,
	ratingService *services.RatingService,
	requireAuth func(http.Handler) http.Handler,
	logger *slog.Logger,
) {
	handler := NewListingHandler(listingService, ratingService, logger)

	r.Get("/", handler.ListListings)
	r.With(requireAuth).Post("/", handler.CreateListing)
	r.Route("/{itemID}", func(r chi.Router) {
		r.Get("/", handler.GetListing)
		r.With(requireAuth).Put("/", handler.UpdateListing)
		r.With(requireAuth).Delete("/", handler.DeleteListing)
		r.Get("/reviews", handler.ListReviews)
		r.With(requireAuth).Post("/reviews", handler.SubmitReview)
	})
}

func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.listingService.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list items")
		return
	}

	writeJSON(w, http.StatusOK, ListingListResponse{
		Envelope: ok("items"),
		Items:    items,
		Page:     page,
		Limit:    limit,
		Total:    total,
	})
}

func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "itemID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	listing, err := h.listingService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to fetch item")
		return
	}

	writeJSON(w, http.StatusOK, ListingResponse{Envelope: ok("item"), Item: listing})
}

func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	identity, found := IdentityFromContext(r.Context())
	if !found {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req ListingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.listingService.Create(r.Context(), identity.UserID, types.Listing{
		Title:       req.Title,
		Description: req.Description,
		PricePerDay: req.PricePerDay,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to create item")
		return
	}

	writeJSON(w, http.StatusCreated, ListingResponse{Envelope: ok("item created"), Item: created})
}

func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	identity, found := IdentityFromContext(r.Context())
	if !found {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := parseIDParam(r, "itemID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req types.ListingUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.listingService.Update(r.Context(), identity.UserID, id, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to update item")
		return
	}

	writeJSON(w, http.StatusOK, ListingResponse{Envelope: ok("item updated"), Item: updated})
}

func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	identity, found := IdentityFromContext(r.Context())
	if !found {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := parseIDParam(r, "itemID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.listingService.Delete(r.Context(), identity.UserID, id); err != nil {
		writeServiceError(w, r, h.logger, err, "failed to delete item")
		return
	}

	writeJSON(w, http.StatusOK, ok("item deleted"))
}

func (h *ListingHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "itemID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reviews, err := h.ratingService.ListForItem(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list reviews")
		return
	}

	writeJSON(w, http.StatusOK, ReviewListResponse{Envelope: ok("reviews"), Reviews: nonNil(reviews)})
}

// SubmitReview records a review of the item's owner. A review that was saved
// while the owner's aggregate could not be refreshed is still a 201; the
// body flags the aggregate as stale so clients do not resubmit.
func (h *ListingHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	identity, found := IdentityFromContext(r.Context())
	if !found {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := parseIDParam(r, "itemID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	review, agg, err := h.ratingService.Submit(r.Context(), services.ReviewInput{
		ItemID:     id,
		ReviewerID: identity.UserID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	})

	var stale *services.AggregateStaleError
	switch {
	case errors.As(err, &stale):
		writeJSON(w, http.StatusCreated, ReviewResponse{
			Envelope:       ok("review saved; seller rating will refresh shortly"),
			Review:         review,
			AggregateStale: true,
		})
	case err != nil:
		writeServiceError(w, r, h.logger, err, "failed to submit review")
	default:
		writeJSON(w, http.StatusCreated, ReviewResponse{
			Envelope:     ok("review saved"),
			Review:       review,
			SellerRating: &agg,
		})
	}
}

type ListingRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	PricePerDay float64 `json:"price_per_day"`
}

type ReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type ListingResponse struct {
	Envelope
	Item types.Listing `json:"item"`
}

type ListingListResponse struct {
	Envelope
	Items []types.Listing `json:"items"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Total int             `json:"total"`
}

type ReviewResponse struct {
	Envelope
	Review         types.Review           `json:"review"`
	SellerRating   *types.RatingAggregate `json:"seller_rating,omitempty"`
	AggregateStale bool                   `json:"aggregate_stale"`
}

type ReviewListResponse struct {
	Envelope
	Reviews []types.Review `json:"reviews"`
}

func nonNil(reviews []types.Review) []types.Review {
	if reviews == nil {
		return []types.Review{}
	}
	return reviews
}
