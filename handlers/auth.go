package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type CredentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// Register handles POST /user/add.
func (h *Handler) Register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailure(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	token, err := h.Accounts.Register(ctx, req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, TokenResponse{Token: token}, "registered successfully")
}

// Login handles POST /user/session.
func (h *Handler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailure(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	token, err := h.Accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, TokenResponse{Token: token}, "login successful")
}

// VerifySession handles POST /user/session/verify. The middleware has already
// checked the token; this also makes sure the user still exists.
func (h *Handler) VerifySession(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if _, ok := h.currentUser(ctx, c); !ok {
		return
	}
	respond(c, http.StatusOK, nil, "ok")
}
