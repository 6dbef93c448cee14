package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/atelierhq/evolink-http/internal/evolink"
	"github.com/atelierhq/evolink-http/internal/model"
	"github.com/atelierhq/evolink-http/internal/utils"
	"github.com/gin-gonic/gin"
)

// UploadReference accepts a multipart reference image, stores it in the blob
// store and returns the URL a generation payload can carry.
func (h *Handler) UploadReference(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.GinFailedWithMessage(c, http.StatusBadRequest, "file is required")
		return
	}
	if fileHeader.Size <= 0 {
		utils.GinFailedWithMessage(c, http.StatusBadRequest, "file is empty")
		return
	}
	if fileHeader.Size > evolink.MaxReferenceBytes {
		utils.GinFailedWithMessage(c, http.StatusBadRequest, "image must be 10MB or smaller")
		return
	}
	contentType := strings.ToLower(fileHeader.Header.Get("Content-Type"))
	if _, ok := evolink.SupportedReferenceMIME[contentType]; !ok {
		utils.GinFailedWithMessage(c, http.StatusBadRequest, "only JPG/PNG/WebP images are supported")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		utils.GinFailedWithMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, evolink.MaxReferenceBytes+1))
	if err != nil {
		utils.GinFailedWithMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	if len(data) > evolink.MaxReferenceBytes {
		utils.GinFailedWithMessage(c, http.StatusBadRequest, "image must be 10MB or smaller")
		return
	}
	url, err := h.Blobs.Put(c.Request.Context(), data, contentType)
	if err != nil {
		utils.GinFailedWithMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, model.UploadResponse{URL: url})
}
