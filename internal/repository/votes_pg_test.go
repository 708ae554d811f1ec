package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lireddit/backend/internal/models"
	"github.com/lireddit/backend/internal/repository"
)

// TestCastSerializesOnPostgres exercises the ledger's row locking against a
// real postgres, where concurrent transactions actually interleave. Skipped
// in short mode or when docker is unavailable.
func TestCastSerializesOnPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("lireddit_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}, &models.Vote{}))

	users := repository.NewUserRepository(db)
	votes := repository.NewVoteRepository(db)

	author := &models.User{Username: "author", Email: "author@example.com", Password: "x"}
	require.NoError(t, users.Create(ctx, author))
	post := &models.Post{Title: "contended", AuthorID: author.ID}
	require.NoError(t, repository.NewPostRepository(db).Create(ctx, post))

	const n = 32
	voters := make([]*models.User, n)
	for i := range voters {
		voters[i] = &models.User{
			Username: fmt.Sprintf("voter%d", i),
			Email:    fmt.Sprintf("voter%d@example.com", i),
			Password: "x",
		}
		require.NoError(t, users.Create(ctx, voters[i]))
	}

	// Every voter upvotes, then half of them flip, all concurrently.
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := votes.Cast(ctx, voters[i].ID, post.ID, 1)
			assert.NoError(t, err)
			if i%2 == 0 {
				_, err := votes.Cast(ctx, voters[i].ID, post.ID, -1)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	var got models.Post
	require.NoError(t, db.First(&got, post.ID).Error)
	assert.Equal(t, 0, got.Points, "half up, half down")

	sum, err := votes.SumForPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Points, sum, "cached total must match the ledger")
}
