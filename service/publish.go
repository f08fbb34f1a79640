package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"forum/models"
	"forum/repository"
)

type PublishInput struct {
	models.DraftFields
	// DraftID is the draft being promoted, if any.
	DraftID string
}

// Publisher turns drafts or fresh submissions into posts.
type Publisher struct {
	posts  repository.PostRepository
	drafts repository.DraftRepository
	now    func() time.Time
}

func NewPublisher(posts repository.PostRepository, drafts repository.DraftRepository) *Publisher {
	return &Publisher{posts: posts, drafts: drafts, now: time.Now}
}

// Publish creates a post owned by ownerID and returns its id. The source draft
// is removed afterwards; a failed removal does not undo the publish.
func (p *Publisher) Publish(ctx context.Context, ownerID string, in PublishInput) (string, error) {
	fields := in.DraftFields
	fields.Tags = normalizeTags(fields.Tags)
	if err := validatePost(fields); err != nil {
		return "", err
	}

	now := p.now().UTC()
	post := &models.Post{
		UserID:    ownerID,
		Title:     strings.TrimSpace(fields.Title),
		Text:      fields.Text,
		HTML:      fields.HTML,
		Tags:      fields.Tags,
		Public:    !fields.Private,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.posts.CreatePost(ctx, post); err != nil {
		return "", storage("create post", err)
	}

	if in.DraftID != "" {
		if err := p.drafts.DeleteDraft(ctx, ownerID, in.DraftID); err != nil {
			log.Printf("[Publish] post %s published but draft %s was not removed: %v", post.ID, in.DraftID, err)
		}
	}
	return post.ID, nil
}

// Remove deletes one of the owner's posts.
func (p *Publisher) Remove(ctx context.Context, ownerID, postID string) error {
	if postID == "" {
		return invalid("id", "post id is required")
	}
	err := p.posts.DeletePost(ctx, ownerID, postID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("post does not exist")
	}
	if err != nil {
		return storage("delete post", err)
	}
	return nil
}
