package handler

import (
	"errors"
	"net/http"

	"bakery/internal/api/v1/dto"
	"bakery/internal/middleware"
	"bakery/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type MediaHandler struct {
	media    service.MediaService
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewMediaHandler(media service.MediaService, v *validator.Validate, logger zerolog.Logger) *MediaHandler {
	return &MediaHandler{media: media, validate: v, logger: logger.With().Str("handler", "MediaHandler").Logger()}
}

func (h *MediaHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMw)
		r.Get("/media", h.list)
		r.Post("/media/upload-url", h.uploadURL)
		r.Get("/media/{mediaId}", h.get)
	})
}

// list godoc
// @Summary The caller's media, newest first
// @Tags media
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} dto.MediaListResponse
// @Router /media [get]
func (h *MediaHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	limit, offset := pagination(r)

	media, err := h.media.List(r.Context(), userID, limit, offset)
	if err != nil {
		internalError(w, r, h.logger, err, "Failed to list media")
		return
	}
	out := make([]dto.MediaDTO, 0, len(media))
	for _, m := range media {
		out = append(out, dto.NewMediaDTO(m))
	}
	writeJSON(w, http.StatusOK, dto.MediaListResponse{Media: out})
}

// get godoc
// @Summary One media item
// @Description Owned or public media with a URL to download it from.
// @Tags media
// @Produce json
// @Security BearerAuth
// @Param mediaId path string true "Media ID"
// @Success 200 {object} dto.MediaDetailResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /media/{mediaId} [get]
func (h *MediaHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	view, err := h.media.Get(r.Context(), userID, chi.URLParam(r, "mediaId"))
	if err != nil {
		if errors.Is(err, service.ErrMediaNotFound) {
			writeError(w, http.StatusNotFound, "Media not found")
			return
		}
		internalError(w, r, h.logger, err, "Failed to fetch media")
		return
	}
	writeJSON(w, http.StatusOK, dto.MediaDetailResponse{
		MediaDTO:    dto.NewMediaDTO(view.Media),
		DownloadURL: view.DownloadURL,
	})
}

// uploadURL godoc
// @Summary Presigned upload URL
// @Description Returns a URL to PUT a generated file to and the storage key to pass as outputUrl.
// @Tags media
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UploadURLRequest true "File name"
// @Success 200 {object} dto.UploadURLResponse
// @Failure 503 {object} dto.ErrorResponse "storage not configured"
// @Router /media/upload-url [post]
func (h *MediaHandler) uploadURL(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req dto.UploadURLRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	up, err := h.media.UploadURL(r.Context(), userID, req.Filename)
	if err != nil {
		if errors.Is(err, service.ErrStorageDisabled) {
			writeError(w, http.StatusServiceUnavailable, "Media storage is not configured")
			return
		}
		internalError(w, r, h.logger, err, "Failed to create upload URL")
		return
	}
	writeJSON(w, http.StatusOK, dto.UploadURLResponse{UploadURL: up.URL, Key: up.Key})
}
