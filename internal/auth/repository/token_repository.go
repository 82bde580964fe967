package repository

import (
	"context"
	"errors"
	"time"

	authdomain "blogpost-backend/internal/auth/domain"

	"gorm.io/gorm"
)

// tokenRepository implements TokenRepository interface
type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new instance of tokenRepository
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Create(ctx context.Context, tokens ...*authdomain.Token) error {
	if len(tokens) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(tokens).Error
}

func (r *tokenRepository) FindByHash(ctx context.Context, hash string) (*authdomain.Token, error) {
	var token authdomain.Token
	err := r.db.WithContext(ctx).Where("hash = ?", hash).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&authdomain.Token{})
	return res.RowsAffected, res.Error
}

func (r *tokenRepository) Rotate(ctx context.Context, userID, consumedID string, fresh ...*authdomain.Token) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Claim the presented token first. Of two concurrent rotations only one
		// can delete it; the loser sees zero rows and aborts.
		res := tx.Where("id = ? AND user_id = ?", consumedID, userID).Delete(&authdomain.Token{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTokenConsumed
		}

		if err := tx.Where("user_id = ?", userID).Delete(&authdomain.Token{}).Error; err != nil {
			return err
		}
		if len(fresh) == 0 {
			return nil
		}
		return tx.Create(fresh).Error
	})
}

func (r *tokenRepository) CountByUserID(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&authdomain.Token{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *tokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&authdomain.Token{})
	return res.RowsAffected, res.Error
}
