package service

import (
	"context"
	"errors"
	"log"
	"time"

	"forum/models"
	"forum/repository"
)

// Drafts coordinates a user's in-progress posts.
type Drafts struct {
	repo repository.DraftRepository
	now  func() time.Time
}

func NewDrafts(repo repository.DraftRepository) *Drafts {
	return &Drafts{repo: repo, now: time.Now}
}

// Save updates the owner's draft draftID, or creates a new draft when draftID
// is empty or does not name one of the owner's drafts. It returns the id the
// caller should use for later saves.
func (d *Drafts) Save(ctx context.Context, ownerID, draftID string, fields models.DraftFields) (string, error) {
	fields.Tags = normalizeTags(fields.Tags)
	if err := validateFields(fields); err != nil {
		return "", err
	}

	draft := &models.Draft{
		UserID:      ownerID,
		DraftFields: fields,
		UpdatedAt:   d.now().UTC(),
	}

	if draftID != "" {
		_, err := d.repo.FindDraft(ctx, ownerID, draftID)
		if err == nil {
			draft.ID = draftID
			err = d.repo.UpdateDraft(ctx, draft)
			if err == nil {
				return draftID, nil
			}
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return "", storage("save draft", err)
		}
		log.Printf("[Drafts] draft %s not owned by %s, creating a new one", draftID, ownerID)
		draft.ID = ""
	}

	if err := d.repo.CreateDraft(ctx, draft); err != nil {
		return "", storage("create draft", err)
	}
	return draft.ID, nil
}

// List returns the owner's drafts, most recently updated first.
func (d *Drafts) List(ctx context.Context, ownerID string) ([]models.Draft, error) {
	drafts, err := d.repo.ListDraftsByOwner(ctx, ownerID)
	if err != nil {
		return nil, storage("list drafts", err)
	}
	for i := range drafts {
		if drafts[i].Tags == nil {
			drafts[i].Tags = []string{}
		}
	}
	return drafts, nil
}

func (d *Drafts) Remove(ctx context.Context, ownerID, draftID string) error {
	if draftID == "" {
		return invalid("id", "draft id is required")
	}
	err := d.repo.DeleteDraft(ctx, ownerID, draftID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("draft does not exist")
	}
	if err != nil {
		return storage("delete draft", err)
	}
	return nil
}
