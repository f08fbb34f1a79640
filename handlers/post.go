package handlers

import (
	"net/http"

	"forum/models"
	"forum/service"

	"github.com/gin-gonic/gin"
)

type SubmitPostRequest struct {
	Title   string   `json:"title" binding:"required"`
	Tags    []string `json:"tags"`
	Text    string   `json:"text" binding:"required"`
	HTML    string   `json:"html"`
	Private *bool    `json:"private" binding:"required"`
	DraftID string   `json:"draftId"`
}

type PostIDResponse struct {
	PostID string `json:"postId"`
}

func listingRequest(c *gin.Context) service.ListingRequest {
	req := service.ListingRequest{
		ID:        c.Query("id"),
		Type:      c.Query("type"),
		Page:      c.Query("page"),
		SortField: c.Query("sortField"),
		SortOrder: c.Query("sortOrder"),
	}
	if kw, ok := c.GetQuery("keywords"); ok {
		req.Keywords = &kw
	}
	return req
}

// GetPost handles GET /post/detail: a single post by id, or a category page.
func (h *Handler) GetPost(c *gin.Context) {
	q, err := service.BuildPostQuery(listingRequest(c))
	if err != nil {
		fail(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if q.Mode == service.ModeDetail {
		post, err := h.Posts.Detail(ctx, q.ID)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, post, "ok")
		return
	}

	posts, err := h.Posts.List(ctx, q)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, posts, "ok")
}

// SearchPosts handles GET /post/search.
func (h *Handler) SearchPosts(c *gin.Context) {
	q, err := service.BuildSearchQuery(listingRequest(c))
	if err != nil {
		fail(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	posts, err := h.Posts.List(ctx, q)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, posts, "ok")
}

// SubmitPost handles POST /post/submit.
func (h *Handler) SubmitPost(c *gin.Context) {
	var req SubmitPostRequest
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

	postID, err := h.Publisher.Publish(ctx, user.ID, service.PublishInput{
		DraftFields: models.DraftFields{
			Title:   req.Title,
			Text:    req.Text,
			HTML:    req.HTML,
			Tags:    req.Tags,
			Private: *req.Private,
		},
		DraftID: req.DraftID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, PostIDResponse{PostID: postID}, "post published")
}

// RemovePost handles DELETE /post/remove?id=.
func (h *Handler) RemovePost(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	user, ok := h.currentUser(ctx, c)
	if !ok {
		return
	}
	if err := h.Publisher.Remove(ctx, user.ID, c.Query("id")); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "post removed")
}

// MyPosts handles GET /user/post/list, private posts included.
func (h *Handler) MyPosts(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	user, ok := h.currentUser(ctx, c)
	if !ok {
		return
	}
	posts, err := h.Posts.Mine(ctx, user.Author())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, posts, "ok")
}
