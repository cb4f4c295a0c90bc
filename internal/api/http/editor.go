package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/launcher"
)

func (h *Handlers) buffer(c *gin.Context) (*launcher.Buffer, bool) {
	inst, ok := h.lookupInstance(c)
	if !ok {
		return nil, false
	}
	if h.opts.Editor == nil {
		failure(c, http.StatusNotFound, errors.New("text editor not enabled"))
		return nil, false
	}
	b, ok := h.opts.Editor.Buffer(inst)
	if !ok {
		failure(c, http.StatusNotFound, errors.New("instance has no editing buffer"))
		return nil, false
	}
	return b, true
}

func bufferBody(b *launcher.Buffer) gin.H {
	return gin.H{
		"success": true,
		"title":   b.Title(),
		"dirty":   b.Dirty(),
		"content": string(b.Content()),
	}
}

// GetBuffer returns the text of a text-editor instance
func (h *Handlers) GetBuffer(c *gin.Context) {
	b, ok := h.buffer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, bufferBody(b))
}

// UpdateBuffer replaces the text of a text-editor instance
func (h *Handlers) UpdateBuffer(c *gin.Context) {
	b, ok := h.buffer(c)
	if !ok {
		return
	}

	var req struct {
		Content *string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, err)
		return
	}
	if err := b.SetContent([]byte(*req.Content)); err != nil {
		failure(c, bufferErrStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, bufferBody(b))
}

// SaveBuffer writes a text-editor buffer to its file
func (h *Handlers) SaveBuffer(c *gin.Context) {
	b, ok := h.buffer(c)
	if !ok {
		return
	}
	if err := b.Save(); err != nil {
		failure(c, bufferErrStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, bufferBody(b))
}

func bufferErrStatus(err error) int {
	if errors.Is(err, launcher.ErrBufferClosed) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
