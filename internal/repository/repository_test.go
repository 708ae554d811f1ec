package repository_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lireddit/backend/internal/models"
	"github.com/lireddit/backend/internal/repository"
)

// newTestDB opens a fresh in-memory sqlite database with the schema
// migrated. One connection only: each test gets its own database and
// transactions serialize like sqlite does in production.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}, &models.Vote{}))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "x",
	}
	require.NoError(t, repository.NewUserRepository(db).Create(context.Background(), user))
	return user
}

func createPost(t *testing.T, db *gorm.DB, authorID int, title string, createdAt time.Time) *models.Post {
	t.Helper()
	post := &models.Post{
		Title:     title,
		Body:      "body of " + title,
		AuthorID:  authorID,
		CreatedAt: createdAt,
	}
	require.NoError(t, repository.NewPostRepository(db).Create(context.Background(), post))
	return post
}
