package service

import (
	"context"
	"strings"

	"bakery/internal/model"
	"bakery/internal/repository"
	"bakery/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultMediaLimit = 20
	maxMediaLimit     = 100
)

type UploadURL struct {
	URL string
	Key string
}

// MediaView is a media record with a URL the caller can download from.
type MediaView struct {
	model.Media
	DownloadURL string
}

type MediaService interface {
	List(ctx context.Context, userID string, limit, offset int) ([]model.Media, error)
	// Get returns owned or public media, else ErrMediaNotFound.
	Get(ctx context.Context, userID, mediaID string) (*MediaView, error)
	UploadURL(ctx context.Context, userID, filename string) (*UploadURL, error)
}

type mediaService struct {
	repo   repository.MediaRepository
	store  storage.ObjectStore
	logger zerolog.Logger
}

// NewMediaService creates a MediaService. store is nil when object storage
// is not configured.
func NewMediaService(repo repository.MediaRepository, store storage.ObjectStore, logger zerolog.Logger) MediaService {
	return &mediaService{
		repo:   repo,
		store:  store,
		logger: logger.With().Str("service", "MediaService").Logger(),
	}
}

func (s *mediaService) List(ctx context.Context, userID string, limit, offset int) ([]model.Media, error) {
	if limit <= 0 {
		limit = defaultMediaLimit
	}
	if limit > maxMediaLimit {
		limit = maxMediaLimit
	}
	if offset < 0 {
		offset = 0
	}
	media, err := s.repo.ListMediaByUser(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list media")
		return nil, err
	}
	return media, nil
}

func (s *mediaService) Get(ctx context.Context, userID, mediaID string) (*MediaView, error) {
	if _, err := uuid.Parse(mediaID); err != nil {
		return nil, ErrMediaNotFound
	}
	m, err := s.repo.GetMediaByID(ctx, mediaID)
	if err != nil {
		s.logger.Error().Err(err).Str("media_id", mediaID).Msg("Failed to fetch media")
		return nil, err
	}
	if m == nil || (m.UserID != userID && !m.IsPublic) {
		return nil, ErrMediaNotFound
	}

	view := &MediaView{Media: *m, DownloadURL: m.URL}
	if m.StorageKey != nil && *m.StorageKey != "" && s.store != nil {
		u, err := s.store.PresignGet(ctx, *m.StorageKey)
		if err != nil {
			s.logger.Error().Err(err).Str("media_id", mediaID).Msg("Failed to presign download URL")
			return nil, err
		}
		view.DownloadURL = u
	}
	return view, nil
}

func (s *mediaService) UploadURL(ctx context.Context, userID, filename string) (*UploadURL, error) {
	if s.store == nil {
		return nil, ErrStorageDisabled
	}
	key := storage.MediaKey(userID, strings.TrimSpace(filename))
	u, err := s.store.PresignPut(ctx, key)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to presign upload URL")
		return nil, err
	}
	return &UploadURL{URL: u, Key: key}, nil
}
