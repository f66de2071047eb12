package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	usersvc "storefront/internal/service/user"
)

type signupRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"fullName"`
}

// tokenRequest follows the OAuth password grant. It binds from a form body or
// JSON.
type tokenRequest struct {
	GrantType string `form:"grant_type" json:"grant_type" binding:"required"`
	Username  string `form:"username" json:"username" binding:"required"`
	Password  string `form:"password" json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	UserID      string `json:"user_id"`
}

func (h *handlers) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	u, err := h.deps.UserSvc.Signup(c.Request.Context(), usersvc.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *handlers) token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "grant_type, username and password are required")
		return
	}
	if req.GrantType != "password" {
		badRequest(c, "unsupported grant_type")
		return
	}
	sess, err := h.deps.UserSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: sess.Token,
		TokenType:   "Bearer",
		ExpiresIn:   h.deps.UserSvc.TokenTTLSeconds(),
		UserID:      sess.User.ID,
	})
}

func (h *handlers) logout(c *gin.Context) {
	token, _ := bearerToken(c.GetHeader("Authorization"))
	if err := h.deps.UserSvc.Logout(c.Request.Context(), strings.TrimSpace(token)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) me(c *gin.Context) {
	id, _ := identityFrom(c)
	u, err := h.deps.UserSvc.Get(c.Request.Context(), id.UserID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
