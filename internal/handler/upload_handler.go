package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/peerlearn/peerlearn/internal/service"
	"github.com/peerlearn/peerlearn/pkg/log"
	"github.com/peerlearn/peerlearn/pkg/response"
)

// multipartOverhead is the room left for multipart headers around the file.
const multipartOverhead = 64 << 10

// UploadImage stores the "file" form field as a chat attachment.
func (h *Handler) UploadImage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Fail(c, http.StatusRequestEntityTooLarge, service.ErrImageTooLarge.Error())
			return
		}
		l.Warn().Err(err).Msg("failed to read upload")
		response.BadRequest(c, "file is required")
		return
	}

	file, err := header.Open()
	if err != nil {
		l.Error().Err(err).Msg("failed to open upload")
		response.InternalError(c, "failed to read upload")
		return
	}
	defer file.Close()

	result, err := h.uploads.UploadImage(ctx, userID, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		handleError(c, err, "failed to upload image")
		return
	}
	response.Created(c, result)
}
