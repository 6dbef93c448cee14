package handler

import (
	"net/http"

	"github.com/atelierhq/evolink-http/internal/model"
	"github.com/atelierhq/evolink-http/internal/utils"
	"github.com/gin-gonic/gin"
)

// ExtractPrompt reads an uploaded image back into a reusable text-to-image
// prompt via the vendor's responses endpoint.
func (h *Handler) ExtractPrompt(c *gin.Context) {
	var req model.PromptExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.GinFailedWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	prompt, err := h.Client.ExtractPrompt(c.Request.Context(), req.ImageDataURL, req.Hints)
	if err != nil {
		utils.GinFailedFromError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.PromptExtractResponse{Prompt: prompt})
}
