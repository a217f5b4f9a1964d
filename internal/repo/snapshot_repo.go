// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for analytics
// snapshots, the last known metrics of every message a user has fetched.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/tg-analytics-gateway/internal/domain"
)

// SnapshotKey identifies one snapshot row for a user.
type SnapshotKey struct {
	ChatRef   string
	MessageID int
}

// UpsertSnapshots writes the given records for userID in a single statement.
// Existing rows are overwritten and their UpdatedAt refreshed.
func UpsertSnapshots(ctx context.Context, db *gorm.DB, userID string, recs map[SnapshotKey]domain.AnalyticsRecord) error {
	if len(recs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]domain.AnalyticsSnapshot, 0, len(recs))
	for k, r := range recs {
		rows = append(rows, domain.AnalyticsSnapshot{
			UserID:    userID,
			ChatRef:   k.ChatRef,
			MessageID: k.MessageID,
			Views:     r.Views,
			Forwards:  r.Forwards,
			Replies:   r.Replies,
			Reactions: r.Reactions,
			Voters:    r.Voters,
			UpdatedAt: now,
		})
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "chat_ref"}, {Name: "message_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"views", "forwards", "replies", "reactions", "voters", "updated_at",
			}),
		}).
		Create(&rows).Error
}

// CountSnapshots returns the number of snapshots stored for userID.
func CountSnapshots(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.AnalyticsSnapshot{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListSnapshotsPage returns a page of snapshots for userID, most recently
// updated first. Ties are broken by chat and message id so pages are stable.
func ListSnapshotsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.AnalyticsSnapshot, error) {
	var out []domain.AnalyticsSnapshot
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		Order("chat_ref asc").
		Order("message_id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeleteSnapshots removes every snapshot owned by userID.
func DeleteSnapshots(ctx context.Context, db *gorm.DB, userID string) error {
	return db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.AnalyticsSnapshot{}).Error
}
