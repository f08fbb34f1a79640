package service

import (
	"context"
	"errors"
	"testing"

	"forum/models"
	"forum/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDraftsFixture(t *testing.T) (*Drafts, *memory.Store) {
	t.Helper()
	store := memory.New()
	addUser(t, store, "alice", "Alice")
	addUser(t, store, "bob", "Bob")
	d := NewDrafts(store)
	d.now = newStepClock().Now
	return d, store
}

func TestDraftSaveCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	d, _ := newDraftsFixture(t)

	id, err := d.Save(ctx, "alice", "", models.DraftFields{Title: "Hi", Text: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	first, err := d.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, first, 1)

	again, err := d.Save(ctx, "alice", id, models.DraftFields{Title: "Hi", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, id, again)

	second, err := d.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, second, 1, "saving with the returned id must not create a second draft")
	assert.True(t, second[0].UpdatedAt.After(first[0].UpdatedAt))
	assert.Equal(t, []string{}, second[0].Tags)
}

func TestDraftSaveWithForeignIDCreatesNewDraft(t *testing.T) {
	ctx := context.Background()
	d, _ := newDraftsFixture(t)

	bobs, err := d.Save(ctx, "bob", "", models.DraftFields{Title: "bob's"})
	require.NoError(t, err)

	id, err := d.Save(ctx, "alice", bobs, models.DraftFields{Title: "alice's"})
	require.NoError(t, err)
	assert.NotEqual(t, bobs, id)

	bobDrafts, err := d.List(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobDrafts, 1)
	assert.Equal(t, "bob's", bobDrafts[0].Title)

	id2, err := d.Save(ctx, "alice", "does-not-exist", models.DraftFields{})
	require.NoError(t, err)
	assert.NotEqual(t, "does-not-exist", id2)
}

func TestDraftSaveValidatesTags(t *testing.T) {
	d, _ := newDraftsFixture(t)

	_, err := d.Save(context.Background(), "alice", "", models.DraftFields{
		Tags: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"},
	})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "tags", err.(*Error).Field)

	_, err = d.Save(context.Background(), "alice", "", models.DraftFields{Tags: []string{"abcdefghijk"}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = d.Save(context.Background(), "alice", "", models.DraftFields{Tags: []string{"十个字的标签没问题呀"}})
	assert.NoError(t, err)
}

func TestDraftListNewestFirst(t *testing.T) {
	ctx := context.Background()
	d, _ := newDraftsFixture(t)

	a, _ := d.Save(ctx, "alice", "", models.DraftFields{Title: "a"})
	b, _ := d.Save(ctx, "alice", "", models.DraftFields{Title: "b"})
	_, _ = d.Save(ctx, "alice", a, models.DraftFields{Title: "a2"})

	drafts, err := d.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, a, drafts[0].ID)
	assert.Equal(t, "a2", drafts[0].Title)
	assert.Equal(t, b, drafts[1].ID)

	none, err := d.List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDraftRemoveChecksOwnership(t *testing.T) {
	ctx := context.Background()
	d, _ := newDraftsFixture(t)

	id, err := d.Save(ctx, "alice", "", models.DraftFields{Title: "mine"})
	require.NoError(t, err)

	err = d.Remove(ctx, "bob", id)
	assert.ErrorIs(t, err, ErrNotFound)

	drafts, _ := d.List(ctx, "alice")
	assert.Len(t, drafts, 1)

	require.NoError(t, d.Remove(ctx, "alice", id))
	assert.ErrorIs(t, d.Remove(ctx, "alice", id), ErrNotFound)
	assert.ErrorIs(t, d.Remove(ctx, "alice", ""), ErrInvalidInput)
}

type failingFind struct {
	*memory.Store
}

func (failingFind) FindDraft(context.Context, string, string) (*models.Draft, error) {
	return nil, errors.New("connection reset")
}

func TestDraftSaveReportsLookupFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	d := NewDrafts(failingFind{store})

	_, err := d.Save(ctx, "alice", "d1", models.DraftFields{Title: "x"})
	require.ErrorIs(t, err, ErrStorage)

	drafts, err := store.ListDraftsByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, drafts, "a failed lookup must not fall back to creating a draft")

	id, err := d.Save(ctx, "alice", "", models.DraftFields{Title: "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestDraftAndPublishAgreeOnTags(t *testing.T) {
	ctx := context.Background()
	d, store := newDraftsFixture(t)
	pub := NewPublisher(store, store)

	tests := []struct {
		name string
		tags []string
		ok   bool
	}{
		{"padding does not count", []string{"  golang      ", "\tgo\n"}, true},
		{"blank tags are dropped", []string{"a", " ", "", "b", "c", "d", "e", "f", "g", "h"}, true},
		{"too long after trimming", []string{"  abcdefghijk "}, false},
		{"too many after trimming", []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := models.DraftFields{Title: "t", Text: "body", Tags: tt.tags}

			_, saveErr := d.Save(ctx, "alice", "", fields)
			_, pubErr := pub.Publish(ctx, "alice", PublishInput{DraftFields: fields})
			if tt.ok {
				assert.NoError(t, saveErr)
				assert.NoError(t, pubErr)
				return
			}
			require.ErrorIs(t, saveErr, ErrInvalidInput)
			require.ErrorIs(t, pubErr, ErrInvalidInput)
			assert.Equal(t, "tags", saveErr.(*Error).Field)
			assert.Equal(t, "tags", pubErr.(*Error).Field)
		})
	}
}
