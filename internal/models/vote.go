package models

import "time"

// Vote records one signed vote per (user, post) pair. The composite primary
// key makes a repeat vote an update, never a second row.
type Vote struct {
	UserID int `gorm:"primaryKey" json:"user_id"`
	PostID int `gorm:"primaryKey" json:"post_id"`
	Value  int `gorm:"not null" json:"value"` // +1 or -1

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
