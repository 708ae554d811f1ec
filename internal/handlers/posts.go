package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lireddit/backend/internal/middleware"
	"github.com/lireddit/backend/internal/models"
	"github.com/lireddit/backend/internal/repository"
)

const defaultPageSize = 20

var (
	titlePolicy = bluemonday.StrictPolicy()
	bodyPolicy  = bluemonday.UGCPolicy()
)

type PostHandler struct {
	posts repository.PostRepository
	votes repository.VoteRepository
	log   *zap.Logger
}

func NewPostHandler(posts repository.PostRepository, votes repository.VoteRepository, log *zap.Logger) *PostHandler {
	return &PostHandler{posts: posts, votes: votes, log: log}
}

// GetPosts returns one cursor page of the feed. Author and viewer-vote
// lookups for the page go through the request's batch loaders, one bulk
// query each instead of one per post.
func (h *PostHandler) GetPosts(c *gin.Context) {
	limit := defaultPageSize
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	page, err := h.posts.Page(c.Request.Context(), limit, c.Query("cursor"))
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	lds := middleware.Loaders(c)
	authors := make([]*models.User, len(page.Posts))
	viewerVotes := make([]*models.Vote, len(page.Posts))

	g, ctx := errgroup.WithContext(c.Request.Context())
	for i := range page.Posts {
		i := i
		post := page.Posts[i]
		g.Go(func() error {
			author, err := lds.Users.Load(ctx, post.AuthorID)
			if err != nil {
				return err
			}
			authors[i] = author
			return nil
		})
		if lds.Votes != nil {
			g.Go(func() error {
				vote, err := lds.Votes.Load(ctx, post.ID)
				if err != nil {
					return err
				}
				viewerVotes[i] = vote
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	items := make([]gin.H, 0, len(page.Posts))
	for i := range page.Posts {
		items = append(items, feedItem(page.Posts[i], authors[i], viewerVotes[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":       items,
		"has_more":    page.HasMore,
		"next_cursor": page.NextCursor,
	})
}

// GetPost returns a single post by ID.
func (h *PostHandler) GetPost(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	post, err := h.posts.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch post"})
		return
	}
	if post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	lds := middleware.Loaders(c)
	author, err := lds.Users.Load(c.Request.Context(), post.AuthorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch post"})
		return
	}
	var vote *models.Vote
	if lds.Votes != nil {
		if vote, err = lds.Votes.Load(c.Request.Context(), post.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch post"})
			return
		}
	}

	item := feedItem(*post, author, vote)
	item["body"] = post.Body
	c.JSON(http.StatusOK, item)
}

// CreatePost creates a new post (requires authentication).
func (h *PostHandler) CreatePost(c *gin.Context) {
	var input models.CreatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}

	post := models.Post{
		Title:    titlePolicy.Sanitize(input.Title),
		Body:     bodyPolicy.Sanitize(input.Body),
		AuthorID: middleware.UserID(c),
	}
	if err := h.posts.Create(c.Request.Context(), &post); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post"})
		return
	}

	h.log.Info("post created", zap.Int("post_id", post.ID), zap.Int("author_id", post.AuthorID))
	c.JSON(http.StatusCreated, post)
}

// UpdatePost retitles a post (author only).
func (h *PostHandler) UpdatePost(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	var input models.UpdatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}

	post, err := h.posts.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update post"})
		return
	}
	if post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	if post.AuthorID != middleware.UserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only edit your own posts"})
		return
	}

	post.Title = titlePolicy.Sanitize(input.Title)
	if err := h.posts.Update(c.Request.Context(), post); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update post"})
		return
	}

	c.JSON(http.StatusOK, post)
}

// DeletePost deletes a post and its votes (author only).
func (h *PostHandler) DeletePost(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	post, err := h.posts.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete post"})
		return
	}
	if post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	if post.AuthorID != middleware.UserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only delete your own posts"})
		return
	}

	if err := h.posts.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete post"})
		return
	}

	h.log.Info("post deleted", zap.Int("post_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// VotePost records the caller's vote on a post (requires authentication).
func (h *PostHandler) VotePost(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	var input models.VoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Vote value must be -1 or 1"})
		return
	}

	applied, err := h.votes.Cast(c.Request.Context(), middleware.UserID(c), id, input.Value)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidVote) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Vote value must be -1 or 1"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to vote"})
		return
	}
	if !applied {
		c.JSON(http.StatusNotFound, gin.H{"applied": false, "error": "Post not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"applied": true})
}

// feedItem serializes one post for list responses. The body is trimmed to a
// snippet; GetPost adds the full body back.
func feedItem(post models.Post, author *models.User, vote *models.Vote) gin.H {
	item := gin.H{
		"id":           post.ID,
		"title":        post.Title,
		"text_snippet": snippet(post.Body, 50),
		"points":       post.Points,
		"created_at":   post.CreatedAt,
		"updated_at":   post.UpdatedAt,
	}
	if author != nil {
		item["author"] = gin.H{"id": author.ID, "username": author.Username}
	}
	voteStatus := 0
	if vote != nil {
		voteStatus = vote.Value
	}
	item["vote_status"] = voteStatus
	return item
}

func snippet(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
