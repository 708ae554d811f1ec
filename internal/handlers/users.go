package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lireddit/backend/internal/middleware"
	"github.com/lireddit/backend/internal/repository"
)

type UserHandler struct {
	users repository.UserRepository
	posts repository.PostRepository
}

func NewUserHandler(users repository.UserRepository, posts repository.PostRepository) *UserHandler {
	return &UserHandler{users: users, posts: posts}
}

// GetUserProfile returns a user's public profile and their posts. The email
// address is included only when the profile belongs to the caller.
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	user, err := h.users.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	posts, err := h.posts.ListByAuthor(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}

	profile := gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
	}
	if middleware.UserID(c) == user.ID {
		profile["email"] = user.Email
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  profile,
		"posts": posts,
	})
}
