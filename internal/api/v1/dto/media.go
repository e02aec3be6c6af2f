package dto

import (
	"time"

	"bakery/internal/model"
)

type MediaDTO struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	FileSize     int64     `json:"fileSize"`
	Duration     *float64  `json:"duration,omitempty"`
	Resolution   string    `json:"resolution,omitempty"`
	Format       string    `json:"format"`
	ModelUsed    string    `json:"modelUsed"`
	PromptText   string    `json:"promptText,omitempty"`
	CreditsCost  float64   `json:"creditsCost"`
	IsPublic     bool      `json:"isPublic"`
	CreatedAt    time.Time `json:"createdAt"`
}

func NewMediaDTO(m model.Media) MediaDTO {
	return MediaDTO{
		ID:           m.ID,
		Type:         string(m.Type),
		Title:        m.Title,
		Description:  m.Description,
		URL:          m.URL,
		ThumbnailURL: m.ThumbnailURL,
		FileSize:     m.FileSize,
		Duration:     m.Duration,
		Resolution:   m.Resolution,
		Format:       m.Format,
		ModelUsed:    m.ModelUsed,
		PromptText:   m.PromptText,
		CreditsCost:  m.CreditsCost.Float(),
		IsPublic:     m.IsPublic,
		CreatedAt:    m.CreatedAt,
	}
}

type MediaListResponse struct {
	Media []MediaDTO `json:"media"`
}

type UploadURLRequest struct {
	Filename string `json:"filename" validate:"required,max=255"`
}

type UploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

type MediaDetailResponse struct {
	MediaDTO
	DownloadURL string `json:"downloadUrl"`
}
