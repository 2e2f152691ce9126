package services

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-meme-gallery/internal/domain"
	"github.com/tbourn/go-meme-gallery/internal/repo"
)

// newServiceDB opens a migrated in-memory database. A single connection keeps
// concurrent tests free of SQLite table-lock errors.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// userRepoFuncs proxies the repo package to UserRepo.
type userRepoFuncs struct{}

func (userRepoFuncs) CreateUser(ctx context.Context, db *gorm.DB, username, hash string, role domain.Role) (*domain.User, error) {
	return repo.CreateUser(ctx, db, username, hash, role)
}

func (userRepoFuncs) GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	return repo.GetUserByUsername(ctx, db, username)
}

func (userRepoFuncs) GetUserView(ctx context.Context, db *gorm.DB, id uint) (*domain.UserView, error) {
	return repo.GetUserView(ctx, db, id)
}

// memeRepoFuncs proxies the repo package to MemeRepo.
type memeRepoFuncs struct{}

func (memeRepoFuncs) CreateMeme(ctx context.Context, db *gorm.DB, userID uint, title, url string) (*domain.Meme, error) {
	return repo.CreateMeme(ctx, db, userID, title, url)
}

func (memeRepoFuncs) GetMeme(ctx context.Context, db *gorm.DB, id uint) (*domain.Meme, error) {
	return repo.GetMeme(ctx, db, id)
}

func (memeRepoFuncs) FindLike(ctx context.Context, db *gorm.DB, userID, memeID uint) (*domain.Like, error) {
	return repo.FindLike(ctx, db, userID, memeID)
}

func (memeRepoFuncs) CreateLike(ctx context.Context, db *gorm.DB, userID, memeID uint) (*domain.Like, error) {
	return repo.CreateLike(ctx, db, userID, memeID)
}

func (memeRepoFuncs) DeleteLike(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	return repo.DeleteLike(ctx, db, id)
}

// fakeTokens records Issue calls.
type fakeTokens struct {
	userID uint
	role   domain.Role
	err    error
}

func (f *fakeTokens) Issue(userID uint, role domain.Role) (string, error) {
	f.userID, f.role = userID, role
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("tok-%d-%s", userID, role), nil
}

func countLikes(t *testing.T, db *gorm.DB, userID, memeID uint) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.Like{}).Where("user_id = ? AND meme_id = ?", userID, memeID).Count(&n).Error; err != nil {
		t.Fatalf("count likes: %v", err)
	}
	return n
}
