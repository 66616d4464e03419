package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hszk-dev/courseflow/internal/domain/model"
	"github.com/hszk-dev/courseflow/internal/domain/repository"
	"github.com/hszk-dev/courseflow/internal/usecase"
)

// Request/Response types

type CreateItemRequest struct {
	Title    string `json:"title"`
	Position int    `json:"position"`
	Locator  string `json:"locator"`
}

type ItemResponse struct {
	ID                 string `json:"id"`
	CourseID           string `json:"course_id"`
	Title              string `json:"title"`
	Position           int    `json:"position"`
	GenerationStatus   string `json:"generation_status"`
	SignedURLExpiresAt string `json:"signed_url_expires_at,omitempty"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

type CourseDetailResponse struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	IsFeatured bool           `json:"is_featured"`
	Items      []ItemResponse `json:"items"`
}

type SignedURLResponse struct {
	ItemID    string `json:"item_id"`
	SignedURL string `json:"signed_url"`
}

// CurriculumHandler handles curriculum item HTTP requests.
type CurriculumHandler struct {
	svc usecase.CatalogService
}

// NewCurriculumHandler creates a new CurriculumHandler.
func NewCurriculumHandler(svc usecase.CatalogService) *CurriculumHandler {
	return &CurriculumHandler{svc: svc}
}

// Create handles POST /v1/courses/{courseID}/items
func (h *CurriculumHandler) Create(w http.ResponseWriter, r *http.Request) {
	courseID, err := uuid.Parse(chi.URLParam(r, "courseID"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_course_id", "Course ID must be a valid UUID")
		return
	}

	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	item, err := h.svc.CreateCurriculumItem(r.Context(), usecase.CreateItemInput{
		CourseID: courseID,
		Title:    req.Title,
		Position: req.Position,
		Locator:  req.Locator,
	})
	if err != nil && item == nil {
		h.handleServiceError(w, err)
		return
	}

	// A failed enqueue of the generation task still created the item; the
	// periodic sweeps will pick it up.
	JSON(w, http.StatusCreated, toItemResponse(item))
}

// Get handles GET /v1/items/{id}
func (h *CurriculumHandler) Get(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_item_id", "Item ID must be a valid UUID")
		return
	}

	item, err := h.svc.GetItem(r.Context(), itemID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, toItemResponse(item))
}

// Delete handles DELETE /v1/items/{id}
func (h *CurriculumHandler) Delete(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_item_id", "Item ID must be a valid UUID")
		return
	}

	if err := h.svc.DeleteCurriculumItem(r.Context(), itemID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CourseDetail handles GET /v1/courses/{courseID}
func (h *CurriculumHandler) CourseDetail(w http.ResponseWriter, r *http.Request) {
	courseID, err := uuid.Parse(chi.URLParam(r, "courseID"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_course_id", "Course ID must be a valid UUID")
		return
	}

	detail, err := h.svc.CourseDetail(r.Context(), courseID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	resp := CourseDetailResponse{
		ID:         detail.Course.ID.String(),
		Title:      detail.Course.Title,
		IsFeatured: detail.Course.IsFeatured,
		Items:      make([]ItemResponse, 0, len(detail.Items)),
	}
	for _, item := range detail.Items {
		resp.Items = append(resp.Items, toItemResponse(item))
	}

	JSON(w, http.StatusOK, resp)
}

// SignedURL handles GET /v1/items/{id}/signed-url
func (h *CurriculumHandler) SignedURL(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_item_id", "Item ID must be a valid UUID")
		return
	}

	url, err := h.svc.SignedURL(r.Context(), itemID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	if url == "" {
		Error(w, http.StatusConflict, "url_not_ready", "Signed URL is not available yet")
		return
	}

	JSON(w, http.StatusOK, SignedURLResponse{
		ItemID:    itemID.String(),
		SignedURL: url,
	})
}

// PlaybackStatus handles GET /v1/items/{id}/playback-status
func (h *CurriculumHandler) PlaybackStatus(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_item_id", "Item ID must be a valid UUID")
		return
	}

	status, err := h.svc.PlaybackStatus(r.Context(), itemID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	if status.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", "30")
	}
	JSON(w, http.StatusOK, status)
}

// Refresh handles POST /v1/items/{id}/refresh
func (h *CurriculumHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_item_id", "Item ID must be a valid UUID")
		return
	}

	if err := h.svc.RefreshItem(r.Context(), itemID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *CurriculumHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrItemNotFound):
		Error(w, http.StatusNotFound, "item_not_found", "Curriculum item not found")
	case errors.Is(err, repository.ErrCourseNotFound):
		Error(w, http.StatusNotFound, "course_not_found", "Course not found")
	case errors.Is(err, repository.ErrDuplicateItem):
		Error(w, http.StatusConflict, "duplicate_item", "An item already exists at this position")
	case errors.Is(err, model.ErrInvalidCourseID):
		Error(w, http.StatusBadRequest, "invalid_course_id", "Course ID cannot be empty")
	case errors.Is(err, model.ErrEmptyTitle):
		Error(w, http.StatusBadRequest, "invalid_title", "Title cannot be empty")
	case errors.Is(err, model.ErrTitleTooLong):
		Error(w, http.StatusBadRequest, "invalid_title", "Title exceeds maximum length")
	case errors.Is(err, model.ErrInvalidPosition):
		Error(w, http.StatusBadRequest, "invalid_position", "Position must be non-negative")
	default:
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func toItemResponse(item *model.CurriculumItem) ItemResponse {
	resp := ItemResponse{
		ID:               item.ID.String(),
		CourseID:         item.CourseID.String(),
		Title:            item.Title,
		Position:         item.Position,
		GenerationStatus: item.GenerationStatus.String(),
		CreatedAt:        item.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:        item.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if item.SignedURLExpiresAt != nil {
		resp.SignedURLExpiresAt = item.SignedURLExpiresAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}
