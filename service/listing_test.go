package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"forum/models"
	"forum/repository"
	"forum/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestBuildPostQueryShapes(t *testing.T) {
	tests := []struct {
		name string
		req  ListingRequest
		mode Mode
	}{
		{"detail", ListingRequest{ID: "p1", Type: "detail"}, ModeDetail},
		{"detail without type", ListingRequest{ID: "p1"}, ModeDetail},
		{"category", ListingRequest{Type: "category", Page: "2", SortField: "updatedAt"}, ModeFeed},
		{"category without type", ListingRequest{Page: "1", SortField: "createdAt"}, ModeFeed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := BuildPostQuery(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.mode, q.Mode)
		})
	}

	q, err := BuildPostQuery(ListingRequest{Type: "category", Page: "3", SortField: "updatedAt"})
	require.NoError(t, err)
	assert.Equal(t, repository.PostQuery{SortField: "updatedAt", Descending: true, Offset: 10, Limit: PageSize}, q.Posts)
}

func TestBuildPostQueryRejects(t *testing.T) {
	tests := []struct {
		name  string
		req   ListingRequest
		field string
	}{
		{"empty", ListingRequest{}, ""},
		{"id with page", ListingRequest{ID: "p1", Page: "1"}, ""},
		{"id with category type", ListingRequest{ID: "p1", Type: "category"}, ""},
		{"feed without sort", ListingRequest{Page: "1"}, ""},
		{"feed with id", ListingRequest{ID: "p1", Page: "1", SortField: "createdAt"}, ""},
		{"unknown type", ListingRequest{Type: "hot", Page: "1", SortField: "createdAt"}, ""},
		{"zero page", ListingRequest{Page: "0", SortField: "createdAt"}, "page"},
		{"text page", ListingRequest{Page: "one", SortField: "createdAt"}, "page"},
		{"unknown sort", ListingRequest{Page: "1", SortField: "password"}, "sortField"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildPostQuery(tt.req)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, tt.field, err.(*Error).Field)
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	q, err := BuildSearchQuery(ListingRequest{Page: "2", SortField: "createdAt", SortOrder: "ASC", Keywords: strPtr("")})
	require.NoError(t, err)
	assert.Equal(t, ModeSearch, q.Mode)
	assert.False(t, q.Posts.Descending)
	assert.Equal(t, 5, q.Posts.Offset)
	require.NotNil(t, q.Posts.Keywords)
	assert.Equal(t, "", *q.Posts.Keywords)

	for name, req := range map[string]ListingRequest{
		"missing keywords": {Page: "1", SortField: "createdAt", SortOrder: "desc"},
		"missing order":    {Page: "1", SortField: "createdAt", Keywords: strPtr("x")},
		"bad order":        {Page: "1", SortField: "createdAt", SortOrder: "sideways", Keywords: strPtr("x")},
		"missing page":     {SortField: "createdAt", SortOrder: "desc", Keywords: strPtr("x")},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := BuildSearchQuery(req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

// seedPosts creates n public posts, one private post per five, with distinct
// created and updated times that do not share an order.
func seedPosts(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	addUser(t, store, "alice", "Alice")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		title := fmt.Sprintf("Post %02d", i)
		text := "plain body"
		if i%3 == 0 {
			text = "Talking about Golang generics"
		}
		require.NoError(t, store.CreatePost(context.Background(), &models.Post{
			ID:        fmt.Sprintf("p%02d", i),
			UserID:    "alice",
			Title:     title,
			Text:      text,
			Public:    i%5 != 4,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			UpdatedAt: base.Add(time.Duration((i*7)%n) * time.Minute),
		}))
	}
}

func TestFeedPagesArePublicAndOrdered(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedPosts(t, store, 23)
	posts := NewPosts(store)

	for _, field := range []string{repository.SortCreatedAt, repository.SortUpdatedAt} {
		seen := map[string]bool{}
		for page := 1; page <= 5; page++ {
			q, err := BuildPostQuery(ListingRequest{Page: fmt.Sprint(page), SortField: field})
			require.NoError(t, err)
			list, err := posts.List(ctx, q)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(list), PageSize)

			for i, p := range list {
				assert.True(t, p.Public)
				assert.False(t, seen[p.ID], "post %s appears on two pages", p.ID)
				seen[p.ID] = true
				if i > 0 {
					prev, cur := list[i-1], p
					if field == repository.SortCreatedAt {
						assert.True(t, prev.CreatedAt.After(cur.CreatedAt))
					} else {
						assert.False(t, prev.UpdatedAt.Before(cur.UpdatedAt))
					}
				}
			}
		}
		assert.Len(t, seen, 19, "every public post is reachable by paging (%s)", field)
	}
}

func TestFeedPastTheEndIsEmpty(t *testing.T) {
	store := memory.New()
	seedPosts(t, store, 3)
	q, err := BuildPostQuery(ListingRequest{Page: "9", SortField: "createdAt"})
	require.NoError(t, err)

	list, err := NewPosts(store).List(context.Background(), q)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestSearchMatchesTitleOrBodyCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedPosts(t, store, 23)
	posts := NewPosts(store)

	for _, kw := range []string{"golang", "POST 1", "ang gen", "nothing-like-this", ""} {
		t.Run(kw, func(t *testing.T) {
			var all []PostSummary
			for page := 1; ; page++ {
				q, err := BuildSearchQuery(ListingRequest{
					Page: fmt.Sprint(page), SortField: "createdAt", SortOrder: "asc", Keywords: strPtr(kw),
				})
				require.NoError(t, err)
				list, err := posts.List(ctx, q)
				require.NoError(t, err)
				if len(list) == 0 {
					break
				}
				all = append(all, list...)
			}
			for i, p := range all {
				needle := strings.ToLower(kw)
				assert.True(t,
					strings.Contains(strings.ToLower(p.Title), needle) || strings.Contains(strings.ToLower(p.Text), needle),
					"%q does not contain %q", p.Title, kw)
				if i > 0 {
					assert.True(t, all[i-1].CreatedAt.Before(p.CreatedAt))
				}
			}
			switch kw {
			case "":
				assert.Len(t, all, 19)
			case "nothing-like-this":
				assert.Empty(t, all)
			case "golang", "ang gen":
				assert.NotEmpty(t, all)
			}
		})
	}
}

func TestDetailNotFound(t *testing.T) {
	_, err := NewPosts(memory.New()).Detail(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
