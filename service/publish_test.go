package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"forum/models"
	"forum/repository"
	"forum/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingDeletes struct {
	*memory.Store
}

func (failingDeletes) DeleteDraft(context.Context, string, string) error {
	return errors.New("connection reset")
}

func TestPublishPromotesDraft(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	addUser(t, store, "alice", "Alice")
	drafts := NewDrafts(store)
	pub := NewPublisher(store, store)
	posts := NewPosts(store)

	fields := models.DraftFields{Title: "Hi", Text: "hello world", HTML: "<p>hello world</p>", Tags: []string{}}
	draftID, err := drafts.Save(ctx, "alice", "", fields)
	require.NoError(t, err)

	postID, err := pub.Publish(ctx, "alice", PublishInput{DraftFields: fields, DraftID: draftID})
	require.NoError(t, err)
	require.NotEmpty(t, postID)

	left, err := drafts.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, left)

	detail, err := posts.Detail(ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, "Hi", detail.Title)
	assert.Equal(t, "hello world", detail.Text)
	assert.Equal(t, "<p>hello world</p>", detail.HTML)
	assert.Equal(t, "Alice", detail.User.Name)
	assert.True(t, detail.Public)
}

func TestPublishPrivatePostIsHiddenFromReadPaths(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	addUser(t, store, "alice", "Alice")
	pub := NewPublisher(store, store)
	posts := NewPosts(store)

	postID, err := pub.Publish(ctx, "alice", PublishInput{DraftFields: models.DraftFields{
		Title: "secret", Text: "only me", Private: true,
	}})
	require.NoError(t, err)

	_, err = posts.Detail(ctx, postID)
	assert.ErrorIs(t, err, ErrNotFound)

	feed, err := BuildPostQuery(ListingRequest{Page: "1", SortField: "createdAt"})
	require.NoError(t, err)
	list, err := posts.List(ctx, feed)
	require.NoError(t, err)
	assert.Empty(t, list)

	kw := "secret"
	search, err := BuildSearchQuery(ListingRequest{Page: "1", SortField: "createdAt", SortOrder: "desc", Keywords: &kw})
	require.NoError(t, err)
	list, err = posts.List(ctx, search)
	require.NoError(t, err)
	assert.Empty(t, list)

	mine, err := posts.Mine(ctx, models.Author{ID: "alice", Name: "Alice"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.False(t, mine[0].Public)
	assert.Equal(t, "Alice", mine[0].User.Name)
}

func TestPublishValidation(t *testing.T) {
	pub := NewPublisher(memory.New(), memory.New())
	tests := []struct {
		name  string
		in    models.DraftFields
		field string
	}{
		{"blank title", models.DraftFields{Title: "   ", Text: "x"}, "title"},
		{"long title", models.DraftFields{Title: strings.Repeat("t", MaxTitleLength+1), Text: "x"}, "title"},
		{"blank text", models.DraftFields{Title: "t", Text: " \n "}, "text"},
		{"too many tags", models.DraftFields{Title: "t", Text: "x", Tags: strings.Split("a,b,c,d,e,f,g,h,i", ",")}, "tags"},
		{"long tag", models.DraftFields{Title: "t", Text: "x", Tags: []string{"elevenchars"}}, "tags"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pub.Publish(context.Background(), "alice", PublishInput{DraftFields: tt.in})
			require.ErrorIs(t, err, ErrInvalidInput)
			var e *Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.field, e.Field)
		})
	}
}

func TestPublishSurvivesDraftCleanupFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	addUser(t, store, "alice", "Alice")
	pub := NewPublisher(store, failingDeletes{store})

	id, err := pub.Publish(ctx, "alice", PublishInput{
		DraftFields: models.DraftFields{Title: "t", Text: "x"},
		DraftID:     "whatever",
	})
	require.NoError(t, err)

	_, err = store.FindPublicPost(ctx, id)
	assert.NoError(t, err)
}

func TestPublishIgnoresForeignDraft(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	addUser(t, store, "alice", "Alice")
	addUser(t, store, "bob", "Bob")
	drafts := NewDrafts(store)
	pub := NewPublisher(store, store)

	bobs, err := drafts.Save(ctx, "bob", "", models.DraftFields{Title: "bob"})
	require.NoError(t, err)

	_, err = pub.Publish(ctx, "alice", PublishInput{DraftFields: models.DraftFields{Title: "t", Text: "x"}, DraftID: bobs})
	require.NoError(t, err)

	_, err = store.FindDraft(ctx, "bob", bobs)
	assert.NoError(t, err, "another user's draft must survive")
}

func TestRemovePost(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	addUser(t, store, "alice", "Alice")
	pub := NewPublisher(store, store)

	id, err := pub.Publish(ctx, "alice", PublishInput{DraftFields: models.DraftFields{Title: "t", Text: "x"}})
	require.NoError(t, err)

	assert.ErrorIs(t, pub.Remove(ctx, "bob", id), ErrNotFound)
	require.NoError(t, pub.Remove(ctx, "alice", id))
	_, err = store.FindPublicPost(ctx, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPublishNormalizesFields(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	addUser(t, store, "alice", "Alice")
	pub := NewPublisher(store, store)

	id, err := pub.Publish(ctx, "alice", PublishInput{DraftFields: models.DraftFields{
		Title: "  Hello  ",
		Text:  "  body kept as sent  ",
		Tags:  []string{" go ", "", "  "},
	}})
	require.NoError(t, err)

	post, err := store.FindPublicPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, "  body kept as sent  ", post.Text)
	assert.Equal(t, []string{"go"}, post.Tags)
}
