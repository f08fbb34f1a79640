// Package repotest holds the behaviour every repository.Store backend must
// share. Backend packages call Run from their own tests.
package repotest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"forum/models"
	"forum/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// base is millisecond aligned so every backend round-trips it exactly.
var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// Run exercises a fresh, empty store returned by open.
func Run(t *testing.T, open func(t *testing.T) repository.Store) {
	t.Run("Users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("PublicPosts", func(t *testing.T) { testPublicPosts(t, open(t)) })
	t.Run("Search", func(t *testing.T) { testSearch(t, open(t)) })
	t.Run("OwnedPosts", func(t *testing.T) { testOwnedPosts(t, open(t)) })
	t.Run("Drafts", func(t *testing.T) { testDrafts(t, open(t)) })
	t.Run("Favorites", func(t *testing.T) { testFavorites(t, open(t)) })
}

func createUser(t *testing.T, s repository.Store, name string) *models.User {
	t.Helper()
	u := &models.User{
		Email:        name + "@example.com",
		PasswordHash: "hash",
		Name:         name,
		Bio:          name + "'s bio",
		CreatedAt:    base,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	require.NotEmpty(t, u.ID)
	return u
}

func createPost(t *testing.T, s repository.Store, owner *models.User, title, text string, public bool, at time.Time) *models.Post {
	t.Helper()
	p := &models.Post{
		UserID:    owner.ID,
		Title:     title,
		Text:      text,
		HTML:      "<p>" + text + "</p>",
		Tags:      []string{"go"},
		Public:    public,
		CreatedAt: at,
		UpdatedAt: at,
	}
	require.NoError(t, s.CreatePost(context.Background(), p))
	require.NotEmpty(t, p.ID)
	return p
}

func titles(posts []models.PostWithAuthor) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Title
	}
	return out
}

func testUsers(t *testing.T, s repository.Store) {
	ctx := context.Background()
	alice := createUser(t, s, "alice")

	err := s.CreateUser(ctx, &models.User{Email: "alice@example.com", PasswordHash: "x", CreatedAt: base})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	byEmail, err := s.FindUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)
	assert.True(t, base.Equal(byEmail.CreatedAt))

	byID, err := s.FindUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Name)

	name, bio := "Alice A.", ""
	require.NoError(t, s.UpdateProfile(ctx, alice.ID, models.ProfileUpdate{Name: &name}))
	require.NoError(t, s.UpdateProfile(ctx, alice.ID, models.ProfileUpdate{Bio: &bio}))
	updated, err := s.FindUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", updated.Name)
	assert.Empty(t, updated.Bio)
	assert.ErrorIs(t, s.UpdateProfile(ctx, "missing", models.ProfileUpdate{Name: &name}), repository.ErrNotFound)

	_, err = s.FindUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.FindUserByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testPublicPosts(t *testing.T, s repository.Store) {
	ctx := context.Background()
	alice := createUser(t, s, "alice")

	var public []*models.Post
	for i := 0; i < 7; i++ {
		public = append(public, createPost(t, s, alice, fmt.Sprintf("post %d", i), "body", true, base.Add(time.Duration(i)*time.Minute)))
	}
	hidden := createPost(t, s, alice, "hidden", "body", false, base.Add(time.Hour))

	got, err := s.FindPublicPost(ctx, public[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "post 0", got.Title)
	assert.Equal(t, "<p>body</p>", got.HTML)
	assert.Equal(t, []string{"go"}, got.Tags)
	require.NotNil(t, got.User)
	assert.Equal(t, models.Author{ID: alice.ID, Name: "alice", Bio: "alice's bio"}, *got.User)

	_, err = s.FindPublicPost(ctx, hidden.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	page, err := s.ListPublicPosts(ctx, repository.PostQuery{SortField: repository.SortCreatedAt, Descending: true, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"post 6", "post 5", "post 4", "post 3", "post 2"}, titles(page))

	page, err = s.ListPublicPosts(ctx, repository.PostQuery{SortField: repository.SortCreatedAt, Descending: true, Offset: 5, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"post 1", "post 0"}, titles(page))

	page, err = s.ListPublicPosts(ctx, repository.PostQuery{SortField: repository.SortUpdatedAt, Offset: 10, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, page)

	page, err = s.ListPublicPosts(ctx, repository.PostQuery{SortField: repository.SortUpdatedAt, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"post 0", "post 1"}, titles(page))
}

func testSearch(t *testing.T, s repository.Store) {
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	createPost(t, s, alice, "Learning Go", "first steps", true, base)
	createPost(t, s, alice, "Rust", "a GOOD language", true, base.Add(time.Minute))
	createPost(t, s, alice, "100% done", "finished", true, base.Add(2*time.Minute))
	createPost(t, s, alice, "go private", "secret", false, base.Add(3*time.Minute))
	createPost(t, s, alice, "ÉCOLE Привет", "bonjour", true, base.Add(4*time.Minute))

	search := func(kw string) []string {
		t.Helper()
		posts, err := s.ListPublicPosts(ctx, repository.PostQuery{
			Keywords: &kw, SortField: repository.SortCreatedAt, Limit: 5,
		})
		require.NoError(t, err)
		return titles(posts)
	}

	assert.Equal(t, []string{"Learning Go", "Rust"}, search("go"), "title or text, any case")
	assert.Equal(t, []string{"100% done"}, search("0%"))
	assert.Empty(t, search("_"))
	assert.Empty(t, search("secret"))
	assert.Equal(t, []string{"ÉCOLE Привет"}, search("école привет"), "case folding beyond ASCII")
	assert.Equal(t, []string{"ÉCOLE Привет"}, search("ПРИВ"))
	assert.Len(t, search(""), 4)
}

func testOwnedPosts(t *testing.T, s repository.Store) {
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	open := createPost(t, s, alice, "open", "body", true, base)
	createPost(t, s, alice, "closed", "body", false, base.Add(time.Minute))
	createPost(t, s, bob, "bob's", "body", true, base)

	mine, err := s.ListPostsByOwner(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "closed", mine[0].Title)
	assert.False(t, mine[0].Public)

	assert.ErrorIs(t, s.DeletePost(ctx, bob.ID, open.ID), repository.ErrNotFound)
	require.NoError(t, s.DeletePost(ctx, alice.ID, open.ID))
	assert.ErrorIs(t, s.DeletePost(ctx, alice.ID, open.ID), repository.ErrNotFound)

	_, err = s.FindPublicPost(ctx, open.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testDrafts(t *testing.T, s repository.Store) {
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")

	first := &models.Draft{UserID: alice.ID, DraftFields: models.DraftFields{Title: "one", Tags: []string{"a"}}, UpdatedAt: base}
	second := &models.Draft{UserID: alice.ID, DraftFields: models.DraftFields{Title: "two", Tags: []string{}, Private: true}, UpdatedAt: base.Add(time.Minute)}
	require.NoError(t, s.CreateDraft(ctx, first))
	require.NoError(t, s.CreateDraft(ctx, second))
	require.NotEqual(t, first.ID, second.ID)

	got, err := s.FindDraft(ctx, alice.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", got.Title)
	assert.Equal(t, []string{"a"}, got.Tags)

	_, err = s.FindDraft(ctx, bob.ID, first.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	list, err := s.ListDraftsByOwner(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "two", list[0].Title)
	assert.True(t, list[0].Private)

	first.Title = "one, edited"
	first.Text = "now with text"
	first.UpdatedAt = base.Add(2 * time.Minute)
	require.NoError(t, s.UpdateDraft(ctx, first))

	list, err = s.ListDraftsByOwner(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "one, edited", list[0].Title)
	assert.Equal(t, "now with text", list[0].Text)

	stolen := *second
	stolen.UserID = bob.ID
	stolen.Title = "hijacked"
	assert.ErrorIs(t, s.UpdateDraft(ctx, &stolen), repository.ErrNotFound)

	assert.ErrorIs(t, s.DeleteDraft(ctx, bob.ID, second.ID), repository.ErrNotFound)
	require.NoError(t, s.DeleteDraft(ctx, alice.ID, second.ID))

	list, err = s.ListDraftsByOwner(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	none, err := s.ListDraftsByOwner(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testFavorites(t *testing.T, s repository.Store) {
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	first := createPost(t, s, alice, "first", "body", true, base)
	second := createPost(t, s, alice, "second", "body", true, base.Add(time.Minute))
	hidden := createPost(t, s, alice, "hidden", "body", false, base)

	fav := func(post *models.Post, at time.Time) error {
		return s.AddFavorite(ctx, &models.Favorite{UserID: bob.ID, PostID: post.ID, CreatedAt: at})
	}
	require.NoError(t, fav(first, base.Add(time.Hour)))
	require.NoError(t, fav(second, base))
	assert.ErrorIs(t, fav(first, base.Add(2*time.Hour)), repository.ErrDuplicate)
	assert.ErrorIs(t, fav(hidden, base), repository.ErrNotFound)
	assert.ErrorIs(t, s.AddFavorite(ctx, &models.Favorite{UserID: bob.ID, PostID: "missing", CreatedAt: base}), repository.ErrNotFound)
	require.NoError(t, s.AddFavorite(ctx, &models.Favorite{UserID: alice.ID, PostID: first.ID, CreatedAt: base}))

	got, err := s.FindPublicPost(ctx, first.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Favorites)

	list, err := s.ListFavoritePosts(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, titles(list))
	require.NotNil(t, list[0].User)
	assert.Equal(t, "alice", list[0].User.Name)

	require.NoError(t, s.RemoveFavorite(ctx, bob.ID, first.ID))
	assert.ErrorIs(t, s.RemoveFavorite(ctx, bob.ID, first.ID), repository.ErrNotFound)
	got, err = s.FindPublicPost(ctx, first.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Favorites)

	require.NoError(t, s.DeletePost(ctx, alice.ID, second.ID))
	list, err = s.ListFavoritePosts(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
