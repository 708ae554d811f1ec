package models

import "time"

type Post struct {
	ID       int    `gorm:"primaryKey" json:"id"`
	Title    string `gorm:"not null" json:"title"`
	Body     string `json:"body,omitempty"`
	AuthorID int    `gorm:"index;not null" json:"author_id"`
	User     User   `gorm:"foreignKey:AuthorID" json:"-"`

	// Denormalized vote total, kept in sync with the votes table by the
	// vote repository's transaction. Never written outside of it.
	Points int `gorm:"default:0" json:"points"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreatePostRequest struct {
	Title string `json:"title" binding:"required,max=300"`
	Body  string `json:"body"`
}

type UpdatePostRequest struct {
	Title string `json:"title" binding:"required,max=300"`
}

type VoteRequest struct {
	Value int `json:"value" binding:"required,oneof=-1 1"`
}
