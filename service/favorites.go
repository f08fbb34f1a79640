package service

import (
	"context"
	"errors"
	"time"

	"forum/models"
	"forum/repository"
)

type Favorites struct {
	repo repository.FavoriteRepository
	now  func() time.Time
}

func NewFavorites(repo repository.FavoriteRepository) *Favorites {
	return &Favorites{repo: repo, now: time.Now}
}

// Add favorites a public post for userID.
func (f *Favorites) Add(ctx context.Context, userID, postID string) error {
	if postID == "" {
		return invalid("postId", "post id is required")
	}
	err := f.repo.AddFavorite(ctx, &models.Favorite{UserID: userID, PostID: postID, CreatedAt: f.now().UTC()})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound("post does not exist")
	case errors.Is(err, repository.ErrDuplicate):
		return &Error{Kind: KindConflict, Field: "postId", Message: "already favorited"}
	case err != nil:
		return storage("add favorite", err)
	}
	return nil
}

func (f *Favorites) Remove(ctx context.Context, userID, postID string) error {
	if postID == "" {
		return invalid("id", "post id is required")
	}
	err := f.repo.RemoveFavorite(ctx, userID, postID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("favorite not found")
	}
	if err != nil {
		return storage("remove favorite", err)
	}
	return nil
}

// List returns the user's favorited posts in list form.
func (f *Favorites) List(ctx context.Context, userID string) ([]PostSummary, error) {
	posts, err := f.repo.ListFavoritePosts(ctx, userID)
	if err != nil {
		return nil, storage("list favorites", err)
	}
	out := make([]PostSummary, 0, len(posts))
	for _, p := range posts {
		out = append(out, ShapeSummary(p))
	}
	return out, nil
}
