package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storelens/internal/models"

	"gorm.io/gorm"
)

func (s *Store) CreateOAuthState(ctx context.Context, state *models.OAuthState) error {
	if err := s.db.WithContext(ctx).Create(state).Error; err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

// ConsumeOAuthState deletes the state and returns it. A nonce can be consumed
// once; expired states are deleted and reported as not found.
func (s *Store) ConsumeOAuthState(ctx context.Context, nonce string, now time.Time) (*models.OAuthState, error) {
	var state models.OAuthState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("nonce = ?", nonce).First(&state).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStateNotFound
			}
			return fmt.Errorf("failed to load oauth state: %w", err)
		}

		res := tx.Where("nonce = ?", nonce).Delete(&models.OAuthState{})
		if res.Error != nil {
			return fmt.Errorf("failed to consume oauth state: %w", res.Error)
		}
		// A concurrent callback won the race.
		if res.RowsAffected == 0 {
			return ErrStateNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !now.Before(state.ExpiresAt) {
		return nil, ErrStateNotFound
	}
	return &state, nil
}

// PurgeExpiredOAuthStates drops abandoned installs.
func (s *Store) PurgeExpiredOAuthStates(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.OAuthState{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge oauth states: %w", res.Error)
	}
	return res.RowsAffected, nil
}
