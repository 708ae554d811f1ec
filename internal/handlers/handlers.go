package handlers

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lireddit/backend/internal/config"
	"github.com/lireddit/backend/internal/repository"
)

// Handler combines all handler types.
type Handler struct {
	Auth *AuthHandler
	Post *PostHandler
	User *UserHandler

	// Repositories exposed for route-level middleware (the per-request
	// loaders need them).
	Users repository.UserRepository
	Posts repository.PostRepository
	Votes repository.VoteRepository
}

// NewHandler builds the repositories once and wires them into every
// sub-handler.
func NewHandler(db *gorm.DB, cfg config.Config, log *zap.Logger) *Handler {
	users := repository.NewUserRepository(db)
	posts := repository.NewPostRepository(db)
	votes := repository.NewVoteRepository(db)
	secret := []byte(cfg.JWTSecret)

	return &Handler{
		Auth:  NewAuthHandler(users, secret, log),
		Post:  NewPostHandler(posts, votes, log),
		User:  NewUserHandler(users, posts),
		Users: users,
		Posts: posts,
		Votes: votes,
	}
}
