// Package services – MemeService
//
// MemeService creates memes and toggles the per-user like relation. The
// toggle is a read-then-act sequence without a transaction: the unique index
// on (user_id, meme_id) resolves concurrent toggles, and both conflict
// outcomes are reported as the state the caller asked for.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-meme-gallery/internal/domain"
	"github.com/tbourn/go-meme-gallery/internal/repo"
)

// Toggle outcome messages.
const (
	MsgLiked   = "Meme liked"
	MsgUnliked = "Meme unliked"
)

// MemeRepo defines the persistence operations MemeService needs.
type MemeRepo interface {
	CreateMeme(ctx context.Context, db *gorm.DB, userID uint, title, url string) (*domain.Meme, error)

	// GetMeme returns repo.ErrNotFound when absent.
	GetMeme(ctx context.Context, db *gorm.DB, id uint) (*domain.Meme, error)

	// FindLike returns (nil, nil) when the pair has no like.
	FindLike(ctx context.Context, db *gorm.DB, userID, memeID uint) (*domain.Like, error)

	// CreateLike returns repo.ErrDuplicate when the pair already exists.
	CreateLike(ctx context.Context, db *gorm.DB, userID, memeID uint) (*domain.Like, error)

	// DeleteLike reports whether a row was removed.
	DeleteLike(ctx context.Context, db *gorm.DB, id uint) (bool, error)
}

// CreateMemeInput is the body of POST /memes.
type CreateMemeInput struct {
	Title string `json:"title" validate:"required,min=1,max=255" example:"cat"`
	URL   string `json:"url"   validate:"required,url"           example:"https://x/y.png"`
}

// LikeResult is the outcome of a toggle.
type LikeResult struct {
	Liked   bool   `json:"-"`
	Message string `json:"message" example:"Meme liked"`
}

// MemeService implements meme creation and like toggling.
type MemeService struct {
	DB   *gorm.DB
	Repo MemeRepo
}

// NewMemeService wires a MemeService.
func NewMemeService(db *gorm.DB, r MemeRepo) *MemeService {
	return &MemeService{DB: db, Repo: r}
}

// Create validates the input and stores a meme owned by ownerID.
func (s *MemeService) Create(ctx context.Context, ownerID uint, in CreateMemeInput) (*domain.Meme, error) {
	ctx, span := otel.Tracer("services/MemeService").Start(ctx, "Create",
		trace.WithAttributes(attribute.Int64("user.id", int64(ownerID))),
	)
	defer span.End()

	in.Title = normalizeTitle(in.Title)
	in.URL = strings.TrimSpace(in.URL)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	m, err := s.Repo.CreateMeme(ctx, s.DB, ownerID, in.Title, in.URL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int64("meme.id", int64(m.ID)))
	return m, nil
}

// ToggleLike flips the like for (userID, memeID): an existing like is
// removed, otherwise one is created.
func (s *MemeService) ToggleLike(ctx context.Context, userID, memeID uint) (*LikeResult, error) {
	ctx, span := otel.Tracer("services/MemeService").Start(ctx, "ToggleLike",
		trace.WithAttributes(
			attribute.Int64("user.id", int64(userID)),
			attribute.Int64("meme.id", int64(memeID)),
		),
	)
	defer span.End()

	res, err := s.toggle(ctx, userID, memeID)
	if err != nil {
		if !errors.Is(err, ErrMemeNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "toggle failed")
		}
		return nil, err
	}
	span.SetAttributes(attribute.Bool("like.liked", res.Liked))
	if res.Liked {
		likeToggles.WithLabelValues("liked").Inc()
	} else {
		likeToggles.WithLabelValues("unliked").Inc()
	}
	return res, nil
}

func (s *MemeService) toggle(ctx context.Context, userID, memeID uint) (*LikeResult, error) {
	if _, err := s.Repo.GetMeme(ctx, s.DB, memeID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrMemeNotFound
		}
		return nil, err
	}

	existing, err := s.Repo.FindLike(ctx, s.DB, userID, memeID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		// Zero rows affected means a concurrent toggle removed it first;
		// either way the like is gone.
		if _, err := s.Repo.DeleteLike(ctx, s.DB, existing.ID); err != nil {
			return nil, err
		}
		return &LikeResult{Liked: false, Message: MsgUnliked}, nil
	}

	// A duplicate means a concurrent toggle inserted it first; the like exists.
	if _, err := s.Repo.CreateLike(ctx, s.DB, userID, memeID); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		return nil, err
	}
	return &LikeResult{Liked: true, Message: MsgLiked}, nil
}

// normalizeTitle trims, collapses runs of whitespace to one space and
// applies Unicode NFC.
func normalizeTitle(s string) string {
	return norm.NFC.String(whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " "))
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
