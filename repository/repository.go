// Package repository declares the storage contracts used by the services.
// Implementations live in the memory, mongostore, pgstore and sqlitestore packages.
package repository

import (
	"context"
	"errors"
	"strings"

	"forum/models"
)

var (
	ErrNotFound  = errors.New("repository: not found")
	ErrDuplicate = errors.New("repository: duplicate key")
)

// Sortable post columns.
const (
	SortCreatedAt = "createdAt"
	SortUpdatedAt = "updatedAt"
)

// PostQuery selects a page of public posts. A nil Keywords means no text filter;
// a non-nil empty one matches every post.
type PostQuery struct {
	Keywords   *string
	SortField  string
	Descending bool
	Offset     int
	Limit      int
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	// UpdateProfile applies the non-nil fields of p to user id.
	UpdateProfile(ctx context.Context, id string, p models.ProfileUpdate) error
}

type PostRepository interface {
	CreatePost(ctx context.Context, p *models.Post) error
	// FindPublicPost returns the post only when it is public.
	FindPublicPost(ctx context.Context, id string) (*models.PostWithAuthor, error)
	ListPublicPosts(ctx context.Context, q PostQuery) ([]models.PostWithAuthor, error)
	ListPostsByOwner(ctx context.Context, ownerID string) ([]models.Post, error)
	DeletePost(ctx context.Context, ownerID, id string) error
}

type DraftRepository interface {
	CreateDraft(ctx context.Context, d *models.Draft) error
	FindDraft(ctx context.Context, ownerID, id string) (*models.Draft, error)
	UpdateDraft(ctx context.Context, d *models.Draft) error
	ListDraftsByOwner(ctx context.Context, ownerID string) ([]models.Draft, error)
	DeleteDraft(ctx context.Context, ownerID, id string) error
}

type FavoriteRepository interface {
	// AddFavorite stores f and bumps the post's counter. The post must be
	// public (ErrNotFound); a repeat favorite is ErrDuplicate.
	AddFavorite(ctx context.Context, f *models.Favorite) error
	RemoveFavorite(ctx context.Context, userID, postID string) error
	// ListFavoritePosts returns the user's favorited public posts, most
	// recently favorited first.
	ListFavoritePosts(ctx context.Context, userID string) ([]models.PostWithAuthor, error)
}

// Store bundles the repositories behind one backend.
type Store interface {
	UserRepository
	PostRepository
	DraftRepository
	FavoriteRepository
	Close(ctx context.Context) error
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern wraps keywords for a LIKE ... ESCAPE '\' substring match.
func LikePattern(keywords string) string {
	return "%" + likeEscaper.Replace(keywords) + "%"
}
