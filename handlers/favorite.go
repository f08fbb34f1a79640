package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type FavoriteRequest struct {
	PostID string `json:"postId" binding:"required"`
}

// AddFavorite handles POST /post/favorite.
func (h *Handler) AddFavorite(c *gin.Context) {
	var req FavoriteRequest
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
	if err := h.Favorites.Add(ctx, user.ID, req.PostID); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, nil, "favorite added")
}

// RemoveFavorite handles DELETE /post/favorite?id=.
func (h *Handler) RemoveFavorite(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	user, ok := h.currentUser(ctx, c)
	if !ok {
		return
	}
	if err := h.Favorites.Remove(ctx, user.ID, c.Query("id")); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "favorite removed")
}

// ListFavorites handles GET /user/favorite/list.
func (h *Handler) ListFavorites(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	user, ok := h.currentUser(ctx, c)
	if !ok {
		return
	}
	posts, err := h.Favorites.List(ctx, user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, posts, "ok")
}
