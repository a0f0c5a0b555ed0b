package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrRefreshRejected is returned for unknown, revoked or expired refresh tokens.
var ErrRefreshRejected = errors.New("auth: refresh token rejected")

// RefreshToken is a stored refresh token, keyed by its jti claim.
type RefreshToken struct {
	ID        string     `gorm:"size:36;primaryKey"`
	UserID    string     `gorm:"size:64;not null;index"`
	ExpiresAt time.Time  `gorm:"not null;index"`
	RevokedAt *time.Time
	CreatedAt time.Time
}

// TableName pins the table name.
func (RefreshToken) TableName() string { return "refresh_tokens" }

// TokenStore persists refresh tokens for rotation checks.
type TokenStore struct {
	db *gorm.DB
}

// NewTokenStore creates a store.
func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{db: db}
}

// Migrate creates the refresh token table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&RefreshToken{})
}

// Save stores a freshly issued refresh token.
func (s *TokenStore) Save(ctx context.Context, userID string, pair TokenPair) error {
	err := s.db.WithContext(ctx).Create(&RefreshToken{
		ID:        pair.RefreshID,
		UserID:    userID,
		ExpiresAt: pair.RefreshExp.UTC(),
	}).Error
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// Consume revokes an active refresh token so it cannot be used again.
func (s *TokenStore) Consume(ctx context.Context, claims Claims) error {
	if claims.Type != TypeRefresh || claims.ID == "" {
		return ErrRefreshRejected
	}
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL AND expires_at > ?", claims.ID, claims.Subject, now).
		Update("revoked_at", now)
	if res.Error != nil {
		return fmt.Errorf("revoke refresh token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRefreshRejected
	}
	return nil
}

// Revoke marks a token revoked, ignoring unknown ids.
func (s *TokenStore) Revoke(ctx context.Context, userID, id string) error {
	return s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL", id, userID).
		Update("revoked_at", time.Now().UTC()).Error
}
