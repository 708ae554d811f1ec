package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/lireddit/backend/internal/loader"
	"github.com/lireddit/backend/internal/repository"
)

const contextLoadersKey = "loaders"

// WithLoaders installs a fresh set of batch loaders for each request. The
// loaders must never outlive the request: their caches are scoped to one
// viewer and one response cycle.
func WithLoaders(users repository.UserRepository, votes repository.VoteRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextLoadersKey, loader.NewLoaders(users, votes, UserID(c)))
		c.Next()
	}
}

// Loaders returns the request's loaders, or nil when WithLoaders is not on
// the route.
func Loaders(c *gin.Context) *loader.Loaders {
	if v, ok := c.Get(contextLoadersKey); ok {
		if l, ok := v.(*loader.Loaders); ok {
			return l
		}
	}
	return nil
}
