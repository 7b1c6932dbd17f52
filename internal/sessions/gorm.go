package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"medibook/internal/models"
)

// GormStore keeps sessions in the refresh_tokens table.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a SQL-backed session store.
func NewGormStore(db *gorm.DB) *GormStore {
	if db == nil {
		panic("sessions: gorm db cannot be nil")
	}
	return &GormStore{db: db}
}

func (s *GormStore) Save(ctx context.Context, session Session) error {
	row := models.RefreshToken{
		BaseModel: models.BaseModel{ID: session.ID},
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("sessions: save: %w", err)
	}
	return nil
}

func (s *GormStore) Consume(ctx context.Context, id string) (*Session, error) {
	var row models.RefreshToken
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_revoked = ? AND expires_at > ?", id, false, time.Now()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sessions: load: %w", err)
	}

	// Only the caller whose update flips is_revoked owns the session.
	res := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("id = ? AND is_revoked = ?", id, false).
		Update("is_revoked", true)
	if res.Error != nil {
		return nil, fmt.Errorf("sessions: consume: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &Session{ID: row.ID, UserID: row.UserID, ExpiresAt: row.ExpiresAt}, nil
}

func (s *GormStore) Revoke(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("id = ?", id).
		Update("is_revoked", true).Error
	if err != nil {
		return fmt.Errorf("sessions: revoke: %w", err)
	}
	return nil
}
