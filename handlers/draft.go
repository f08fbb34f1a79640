package handlers

import (
	"net/http"

	"forum/models"

	"github.com/gin-gonic/gin"
)

type SaveDraftRequest struct {
	DraftID string   `json:"draftId"`
	Title   string   `json:"title"`
	Tags    []string `json:"tags"`
	Text    string   `json:"text"`
	HTML    string   `json:"html"`
	Private bool     `json:"private"`
}

type DraftIDResponse struct {
	DraftID string `json:"draftId"`
}

// SaveDraft handles POST /draft/save.
func (h *Handler) SaveDraft(c *gin.Context) {
	var req SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailure(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, ok := h.currentUser(ctx, c)
	if !ok {
		return
	}

	id, err := h.Drafts.Save(ctx, user.ID, req.DraftID, models.DraftFields{
		Title:   req.Title,
		Text:    req.Text,
		HTML:    req.HTML,
		Tags:    req.Tags,
		Private: req.Private,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, DraftIDResponse{DraftID: id}, "draft saved")
}

// ListDrafts handles GET /draft/list.
func (h *Handler) ListDrafts(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	user, ok := h.currentUser(ctx, c)
	if !ok {
		return
	}
	drafts, err := h.Drafts.List(ctx, user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, drafts, "ok")
}

// RemoveDraft handles DELETE /draft/remove?id=.
func (h *Handler) RemoveDraft(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	user, ok := h.currentUser(ctx, c)
	if !ok {
		return
	}
	if err := h.Drafts.Remove(ctx, user.ID, c.Query("id")); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "draft removed")
}
