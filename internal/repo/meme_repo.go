// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the content store: repository functions
// for memes and the like relation.
//
// The like relation is a toggle flag materialised as row presence. The
// (user_id, meme_id) unique index is the source of truth; CreateLike surfaces
// a violation as ErrDuplicate so the service can resolve concurrent toggles.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-meme-gallery/internal/domain"
)

// CreateMeme inserts a meme owned by userID.
func CreateMeme(ctx context.Context, db *gorm.DB, userID uint, title, url string) (*domain.Meme, error) {
	m := &domain.Meme{
		Title:  title,
		URL:    url,
		UserID: userID,
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMeme fetches a meme by id, or ErrNotFound.
func GetMeme(ctx context.Context, db *gorm.DB, id uint) (*domain.Meme, error) {
	var m domain.Meme
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindLike returns the like for (userID, memeID) or nil when none exists.
// Absence is not an error.
func FindLike(ctx context.Context, db *gorm.DB, userID, memeID uint) (*domain.Like, error) {
	var l domain.Like
	err := db.WithContext(ctx).
		Where("user_id = ? AND meme_id = ?", userID, memeID).
		First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLike inserts a like row. Returns ErrDuplicate if the pair already exists.
func CreateLike(ctx context.Context, db *gorm.DB, userID, memeID uint) (*domain.Like, error) {
	l := &domain.Like{UserID: userID, MemeID: memeID}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, duplicateOr(err)
	}
	return l, nil
}

// DeleteLike hard-deletes a like by id and reports whether a row was removed.
// Zero rows means a concurrent toggle already deleted it.
func DeleteLike(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	res := db.WithContext(ctx).Delete(&domain.Like{}, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
