package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-meme-gallery/internal/services"
)

// Register godoc
// @ID          register
// @Summary     Register a user
// @Description Creates an account with role USER. Usernames are 3–50 characters, passwords 6–128.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      services.RegisterInput  true  "Credentials"
// @Success     201   {object}  domain.UserView
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     409   {object}  handlers.ErrorResponse  "Username already exists"
// @Failure     429   {object}  handlers.ErrorResponse  "Too many requests"
// @Failure     500   {object}  handlers.ErrorResponse  "Server error"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req services.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgInvalidJSON, nil)
		return
	}
	u, err := h.authSvc.Register(c.Request.Context(), req)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, u)
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Exchanges credentials for a bearer token. Unknown usernames and wrong passwords get the same 401.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      services.LoginInput  true  "Credentials"
// @Success     200   {object}  services.TokenResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401   {object}  handlers.ErrorResponse  "Invalid credentials"
// @Failure     429   {object}  handlers.ErrorResponse  "Too many requests"
// @Failure     500   {object}  handlers.ErrorResponse  "Server error"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req services.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgInvalidJSON, nil)
		return
	}
	tok, err := h.authSvc.Login(c.Request.Context(), req)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, tok)
}

// Me godoc
// @ID          me
// @Summary     Current user
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.UserView
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Server error"
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	id, found := identity(c)
	if !found {
		return
	}
	u, err := h.authSvc.Me(c.Request.Context(), id.UserID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}
