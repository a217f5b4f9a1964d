// Package domain defines the core types for the application. This file holds
// the persistence models mapped with GORM and shared by the repository and
// service layers.
package domain

import "time"

// PendingSignIn records a verification code request that has not yet been
// consumed by a successful sign-in. There is at most one row per user; a new
// code request replaces the previous one.
//
// Expiry of the code itself is enforced by Telegram, not tracked here.
type PendingSignIn struct {
	UserID        string    `gorm:"type:varchar(128);primaryKey"`
	PhoneNumber   string    `gorm:"type:varchar(32);not null"`
	PhoneCodeHash string    `gorm:"type:varchar(255);not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName implements the GORM tabler interface.
func (PendingSignIn) TableName() string { return "pending_sign_ins" }

// AnalyticsSnapshot is the last known analytics record for a message, keyed
// by (user_id, chat_ref, message_id). Rows are upserted after every
// successful fetch.
type AnalyticsSnapshot struct {
	UserID    string    `json:"-"          gorm:"type:varchar(128);primaryKey"`
	ChatRef   string    `json:"chat_id"    gorm:"type:varchar(128);primaryKey"`
	MessageID int       `json:"message_id" gorm:"primaryKey;autoIncrement:false"`
	Views     int       `json:"views"      gorm:"not null;default:0"`
	Forwards  int       `json:"forwards"   gorm:"not null;default:0"`
	Replies   int       `json:"replies"    gorm:"not null;default:0"`
	Reactions int       `json:"reactions"  gorm:"not null;default:0"`
	Voters    int       `json:"voters"     gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index"`
}

// TableName implements the GORM tabler interface.
func (AnalyticsSnapshot) TableName() string { return "analytics_snapshots" }

// Record returns the normalized analytics view of the snapshot.
func (s AnalyticsSnapshot) Record() AnalyticsRecord {
	return AnalyticsRecord{
		Views:     s.Views,
		Forwards:  s.Forwards,
		Replies:   s.Replies,
		Reactions: s.Reactions,
		Voters:    s.Voters,
	}
}
