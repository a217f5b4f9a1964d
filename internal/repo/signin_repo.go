// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for pending
// sign-ins, the phone code hashes issued by RequestCode and consumed by
// SignIn.
//
// There is at most one pending row per user. Saving replaces any previous
// row, and the row is removed once the sign-in succeeds or the user logs out.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/tg-analytics-gateway/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// SavePendingSignIn upserts the pending sign-in for userID, replacing any
// earlier code request.
func SavePendingSignIn(ctx context.Context, db *gorm.DB, userID, phone, hash string) (*domain.PendingSignIn, error) {
	p := &domain.PendingSignIn{
		UserID:        userID,
		PhoneNumber:   phone,
		PhoneCodeHash: hash,
		CreatedAt:     time.Now().UTC(),
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"phone_number", "phone_code_hash", "created_at"}),
		}).
		Create(p).Error
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPendingSignIn returns the pending sign-in for userID or ErrNotFound.
func GetPendingSignIn(ctx context.Context, db *gorm.DB, userID string) (*domain.PendingSignIn, error) {
	var p domain.PendingSignIn
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePendingSignIn removes the pending sign-in for userID. Deleting a
// missing row is not an error.
func DeletePendingSignIn(ctx context.Context, db *gorm.DB, userID string) error {
	return db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.PendingSignIn{}).Error
}
