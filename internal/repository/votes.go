package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lireddit/backend/internal/models"
)

type VoteRepository interface {
	// Cast records value as userID's current vote on postID and adjusts the
	// post's cached point total by the delta against any prior vote, all in
	// one transaction. It reports false without error when the post does not
	// exist.
	Cast(ctx context.Context, userID, postID, value int) (bool, error)
	// FindForPosts bulk-fetches one user's votes across a set of posts.
	FindForPosts(ctx context.Context, userID int, postIDs []int) ([]models.Vote, error)
	// SumForPost recomputes a post's total from the ledger rows.
	SumForPost(ctx context.Context, postID int) (int, error)
}

type voteRepo struct {
	db *gorm.DB
}

func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepo{db: db}
}

func (r *voteRepo) Cast(ctx context.Context, userID, postID, value int) (bool, error) {
	if value != 1 && value != -1 {
		return false, ErrInvalidVote
	}

	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the post row so concurrent votes on it serialize and the
		// cached total never drifts from the ledger. SQLite has no FOR
		// UPDATE; its single-writer transactions serialize on their own.
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var post models.Post
		if err := q.First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		delta := value
		var prior models.Vote
		err := tx.Where("user_id = ? AND post_id = ?", userID, postID).First(&prior).Error
		switch {
		case err == nil:
			delta = value - prior.Value
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if err == nil && delta == 0 {
			// Re-vote in the same direction: the ledger row already says
			// value, nothing to write.
			applied = true
			return nil
		}

		vote := models.Vote{UserID: userID, PostID: postID, Value: value}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&vote).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumn("points", gorm.Expr("points + ?", delta)).Error; err != nil {
			return err
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to cast vote: %w", err)
	}
	return applied, nil
}

func (r *voteRepo) FindForPosts(ctx context.Context, userID int, postIDs []int) ([]models.Vote, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	var votes []models.Vote
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Find(&votes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find votes: %w", err)
	}
	return votes, nil
}

func (r *voteRepo) SumForPost(ctx context.Context, postID int) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&models.Vote{}).
		Select("COALESCE(SUM(value), 0)").
		Where("post_id = ?", postID).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum votes: %w", err)
	}
	return total, nil
}
