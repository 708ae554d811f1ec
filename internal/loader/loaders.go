package loader

import (
	"context"

	"github.com/lireddit/backend/internal/models"
	"github.com/lireddit/backend/internal/repository"
)

// Loaders bundles the per-request loaders: post authors by user id and, for
// an authenticated viewer, their own votes by post id.
type Loaders struct {
	Users *Batched[int, *models.User]

	// Votes is nil for anonymous requests; no vote lookups happen for them.
	Votes *Batched[int, *models.Vote]
}

// NewLoaders builds fresh loaders for one inbound request. viewerID is zero
// for anonymous requests.
func NewLoaders(users repository.UserRepository, votes repository.VoteRepository, viewerID int, opts ...Option) *Loaders {
	l := &Loaders{
		Users: New(func(ctx context.Context, ids []int) (map[int]*models.User, error) {
			rows, err := users.FindByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			byID := make(map[int]*models.User, len(rows))
			for i := range rows {
				byID[rows[i].ID] = &rows[i]
			}
			return byID, nil
		}, opts...),
	}

	if viewerID != 0 {
		l.Votes = New(func(ctx context.Context, postIDs []int) (map[int]*models.Vote, error) {
			rows, err := votes.FindForPosts(ctx, viewerID, postIDs)
			if err != nil {
				return nil, err
			}
			byPost := make(map[int]*models.Vote, len(rows))
			for i := range rows {
				byPost[rows[i].PostID] = &rows[i]
			}
			return byPost, nil
		}, opts...)
	}

	return l
}
