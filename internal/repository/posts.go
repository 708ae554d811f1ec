package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/lireddit/backend/internal/models"
)

// MaxPageSize is the hard ceiling on feed page length; client-requested
// limits are clamped to it before the store is queried.
const MaxPageSize = 50

// Page is one reverse-chronological slice of the feed.
type Page struct {
	Posts      []models.Post
	HasMore    bool
	NextCursor string
}

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	// FindByID returns the post or nil when no row exists.
	FindByID(ctx context.Context, id int) (*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	// Delete removes the post and its votes.
	Delete(ctx context.Context, id int) error
	// Page returns up to limit posts newest-first, strictly older than the
	// cursor position when a cursor is supplied.
	Page(ctx context.Context, limit int, cursor string) (Page, error)
	// ListByAuthor returns all of one author's posts, newest first.
	ListByAuthor(ctx context.Context, authorID int) ([]models.Post, error)
}

type postRepo struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepo{db: db}
}

func (r *postRepo) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

func (r *postRepo) FindByID(ctx context.Context, id int) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).First(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post %d: %w", id, err)
	}
	return &post, nil
}

func (r *postRepo) Update(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Save(post).Error; err != nil {
		return fmt.Errorf("failed to update post %d: %w", post.ID, err)
	}
	return nil
}

func (r *postRepo) Delete(ctx context.Context, id int) error {
	// The votes delete is explicit rather than left to the FK so the cascade
	// holds on stores without referential actions enabled.
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete post %d: %w", id, err)
	}
	return nil
}

func (r *postRepo) ListByAuthor(ctx context.Context, authorID int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC, id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by author %d: %w", authorID, err)
	}
	return posts, nil
}

func (r *postRepo) Page(ctx context.Context, limit int, cursor string) (Page, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	q := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if cursor != "" {
		createdAt, id, err := DecodeCursor(cursor)
		if err != nil {
			return Page{}, err
		}
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	}

	// Fetch one row past the requested page; its presence is the hasMore
	// signal and saves a count query.
	var posts []models.Post
	if err := q.Find(&posts).Error; err != nil {
		return Page{}, fmt.Errorf("failed to page posts: %w", err)
	}

	page := Page{HasMore: len(posts) == limit+1}
	if page.HasMore {
		posts = posts[:limit]
	}
	page.Posts = posts

	if page.HasMore && len(posts) > 0 {
		last := posts[len(posts)-1]
		page.NextCursor = EncodeCursor(last.CreatedAt, last.ID)
	}
	return page, nil
}
