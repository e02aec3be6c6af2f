// Package pricing turns a generation request into a model id and a credit cost.
package pricing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"bakery/internal/model"
)

// Generation operations accepted by the credits API.
const (
	OperationVideo = "video_generation"
	OperationImage = "image_generation"
	OperationAudio = "audio_generation"
)

var (
	ErrInvalidOperation = errors.New("invalid operation")
	ErrMissingModel     = errors.New("model is required")
	ErrUnknownModel     = errors.New("invalid model or operation")
	ErrMissingQuantity  = errors.New("a positive quantity is required for this model")
)

// Parameters are the generation parameters sent by the client. Only the
// fields used for pricing and media records are decoded; the raw document is
// stored as ledger metadata.
type Parameters struct {
	Model           string  `json:"model"`
	Quality         string  `json:"quality,omitempty"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	Megapixels      float64 `json:"megapixels,omitempty"`
	Characters      float64 `json:"characters,omitempty"`
	Prompt          string  `json:"prompt,omitempty"`
	Resolution      string  `json:"resolution,omitempty"`
	Format          string  `json:"format,omitempty"`
	FileSize        int64   `json:"fileSize,omitempty"`
}

// Quote is the priced form of one generation request.
type Quote struct {
	ModelID     string
	MediaType   model.MediaType
	Cost        model.Credits
	Description string
}

// ResolveModel maps an operation and its parameters to the usage-setting
// model id and the media type it produces.
func ResolveModel(operation string, p Parameters) (string, model.MediaType, error) {
	var mediaType model.MediaType
	switch operation {
	case OperationVideo:
		mediaType = model.MediaTypeVideo
	case OperationImage:
		mediaType = model.MediaTypeImage
	case OperationAudio:
		mediaType = model.MediaTypeAudio
	default:
		return "", "", ErrInvalidOperation
	}

	if strings.TrimSpace(p.Model) == "" {
		return "", "", ErrMissingModel
	}

	if mediaType == model.MediaTypeVideo {
		if p.Quality == "high" {
			return p.Model + "_720p", mediaType, nil
		}
		return p.Model + "_540p", mediaType, nil
	}
	return p.Model, mediaType, nil
}

// Cost prices a request against the model's usage setting. The raw cost is
// rounded up to the next hundredth of a credit.
func Cost(setting model.CreditUsageSetting, mediaType model.MediaType, p Parameters) (Quote, error) {
	if !setting.IsActive {
		return Quote{}, ErrUnknownModel
	}

	q := Quote{ModelID: setting.ModelID, MediaType: mediaType}
	var raw float64

	switch setting.Unit {
	case model.UnitPerSecond:
		if p.DurationSeconds <= 0 {
			return Quote{}, fmt.Errorf("durationSeconds: %w", ErrMissingQuantity)
		}
		raw = setting.CreditCost * p.DurationSeconds
		q.Description = fmt.Sprintf("Generated %ss %s with %s", formatNumber(p.DurationSeconds), mediaType, setting.ModelID)
	case model.UnitPerMegapixel:
		if p.Megapixels <= 0 {
			return Quote{}, fmt.Errorf("megapixels: %w", ErrMissingQuantity)
		}
		raw = setting.CreditCost * p.Megapixels
		q.Description = fmt.Sprintf("Generated %s with %s at %sMP", mediaType, setting.ModelID, formatNumber(p.Megapixels))
	case model.UnitPer1000Chars:
		if p.Characters <= 0 {
			return Quote{}, fmt.Errorf("characters: %w", ErrMissingQuantity)
		}
		raw = setting.CreditCost * (p.Characters / 1000)
		q.Description = fmt.Sprintf("Generated %s with %s, %s characters", mediaType, setting.ModelID, formatNumber(p.Characters))
	default:
		raw = setting.CreditCost
		q.Description = fmt.Sprintf("Generated %s with %s", mediaType, setting.ModelID)
	}

	q.Cost = model.CeilCredits(raw)
	return q, nil
}

// DefaultTitle is the media title used when the client does not send one.
func DefaultTitle(mediaType model.MediaType) string {
	s := string(mediaType)
	if s == "" {
		return "Generation"
	}
	return strings.ToUpper(s[:1]) + s[1:] + " Generation"
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
