package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-meme-gallery/internal/services"
	"github.com/tbourn/go-meme-gallery/internal/utils"
)

// CreateMeme godoc
// @ID          createMeme
// @Summary     Post a meme
// @Description Stores a meme owned by the caller. Titles are 1–255 characters; url must be absolute.
// @Tags        Memes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.CreateMemeInput  true  "Meme"
// @Success     201   {object}  domain.Meme
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401   {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     500   {object}  handlers.ErrorResponse  "Server error"
// @Router      /memes [post]
func (h *Handlers) CreateMeme(c *gin.Context) {
	id, found := identity(c)
	if !found {
		return
	}
	var req services.CreateMemeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgInvalidJSON, nil)
		return
	}
	m, err := h.memeSvc.Create(c.Request.Context(), id.UserID, req)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, m)
}

// ToggleLike godoc
// @ID          toggleLike
// @Summary     Like or unlike a meme
// @Description Flips the caller's like on the meme and reports which way it went.
// @Tags        Memes
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "Meme ID"  minimum(1)
// @Success     200  {object}  services.LikeResult
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid meme id"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     404  {object}  handlers.ErrorResponse  "Meme not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Server error"
// @Router      /memes/{id}/like [post]
func (h *Handlers) ToggleLike(c *gin.Context) {
	id, found := identity(c)
	if !found {
		return
	}
	memeID, err := utils.ParseID(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidID, msgInvalidMemeID, nil)
		return
	}
	res, err := h.memeSvc.ToggleLike(c.Request.Context(), id.UserID, memeID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
