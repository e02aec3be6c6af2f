package repository

import (
	"bakery/internal/model"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// MediaRepository reads generated-media records. Records are written by
// CreditRepository.Debit together with the usage entry that paid for them.
type MediaRepository interface {
	GetMediaByID(ctx context.Context, id string) (*model.Media, error)
	ListMediaByUser(ctx context.Context, userID string, limit, offset int) ([]model.Media, error)
}

type mediaRepo struct {
	db *sql.DB
}

func NewMediaRepo(db *sql.DB) MediaRepository {
	return &mediaRepo{db: db}
}

const mediaColumns = `id, user_id, type, title, description, url, storage_key, thumbnail_url, file_size,
	duration, resolution, format, model_used, prompt_text, credits_cost, metadata, is_public, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMedia(s scanner) (*model.Media, error) {
	var m model.Media
	var metadata []byte
	err := s.Scan(&m.ID, &m.UserID, &m.Type, &m.Title, &m.Description, &m.URL, &m.StorageKey, &m.ThumbnailURL,
		&m.FileSize, &m.Duration, &m.Resolution, &m.Format, &m.ModelUsed, &m.PromptText, &m.CreditsCost,
		&metadata, &m.IsPublic, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		m.Metadata = json.RawMessage(metadata)
	}
	return &m, nil
}

func (r *mediaRepo) GetMediaByID(ctx context.Context, id string) (*model.Media, error) {
	m, err := scanMedia(r.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch media %s: %w", id, err)
	}
	return m, nil
}

func (r *mediaRepo) ListMediaByUser(ctx context.Context, userID string, limit, offset int) ([]model.Media, error) {
	q := `SELECT ` + mediaColumns + ` FROM media WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing media for user %s: %w", userID, err)
	}
	defer rows.Close()

	items := []model.Media{}
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning media for user %s: %w", userID, err)
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating media for user %s: %w", userID, err)
	}
	return items, nil
}

func insertMedia(ctx context.Context, db execer, m *model.Media) error {
	const q = `
		INSERT INTO media (id, user_id, type, title, description, url, storage_key, thumbnail_url, file_size,
		                   duration, resolution, format, model_used, prompt_text, credits_cost, metadata, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at`
	err := db.QueryRowContext(ctx, q, m.ID, m.UserID, m.Type, m.Title, m.Description, m.URL, m.StorageKey,
		m.ThumbnailURL, m.FileSize, m.Duration, m.Resolution, m.Format, m.ModelUsed, m.PromptText,
		m.CreditsCost, jsonArg(m.Metadata), m.IsPublic).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("recording media for user %s: %w", m.UserID, err)
	}
	return nil
}
