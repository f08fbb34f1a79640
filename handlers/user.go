package handlers

import (
	"net/http"

	"forum/models"

	"github.com/gin-gonic/gin"
)

type UpdateProfileRequest struct {
	Name *string `json:"name" binding:"omitempty,max=30"`
	Bio  *string `json:"bio" binding:"omitempty,max=200"`
}

// UserInfo handles GET /user/info?id=.
func (h *Handler) UserInfo(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		respond(c, http.StatusBadRequest, nil, "parameters invalid")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := h.Accounts.Profile(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, profile, "ok")
}

// UpdateMyProfile handles PUT /user/profile. Omitted fields keep their value.
func (h *Handler) UpdateMyProfile(c *gin.Context) {
	var req UpdateProfileRequest
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
	if req.Name == nil && req.Bio == nil {
		respond(c, http.StatusOK, user.Author(), "no changes to update")
		return
	}

	profile, err := h.Accounts.UpdateProfile(ctx, user.ID, models.ProfileUpdate{Name: req.Name, Bio: req.Bio})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, profile, "profile updated successfully")
}
