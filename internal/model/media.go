package model

import (
	"encoding/json"
	"time"
)

type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeImage MediaType = "image"
	MediaTypeAudio MediaType = "audio"
)

// Media is the metadata of one generated asset.
type Media struct {
	ID           string          `db:"id" json:"id"`
	UserID       string          `db:"user_id" json:"userId"`
	Type         MediaType       `db:"type" json:"type"`
	Title        string          `db:"title" json:"title"`
	Description  string          `db:"description" json:"description,omitempty"`
	URL          string          `db:"url" json:"url"`
	StorageKey   *string         `db:"storage_key" json:"-"`
	ThumbnailURL string          `db:"thumbnail_url" json:"thumbnailUrl,omitempty"`
	FileSize     int64           `db:"file_size" json:"fileSize"`
	Duration     *float64        `db:"duration" json:"duration,omitempty"`
	Resolution   string          `db:"resolution" json:"resolution,omitempty"`
	Format       string          `db:"format" json:"format"`
	ModelUsed    string          `db:"model_used" json:"modelUsed"`
	PromptText   string          `db:"prompt_text" json:"promptText,omitempty"`
	CreditsCost  Credits         `db:"credits_cost" json:"creditsCost"`
	Metadata     json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	IsPublic     bool            `db:"is_public" json:"isPublic"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}
