package handler

import (
	"net/http"

	"github.com/atelierhq/evolink-http/internal/evolink"
	"github.com/atelierhq/evolink-http/internal/model"
	"github.com/atelierhq/evolink-http/internal/utils"
	"github.com/gin-gonic/gin"
)

// CreateFabricSwapTask builds the deterministic fabric directive from the
// request knobs and submits it with the reference photo.
func (h *Handler) CreateFabricSwapTask(c *gin.Context) {
	var req model.FabricSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.GinFailedWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.ImageURL == "" && req.ImageDataURL == "" {
		utils.GinFailedWithMessage(c, http.StatusBadRequest, "reference image is required")
		return
	}
	if req.FabricType == "custom" && req.FabricLabel == "" {
		utils.GinFailedWithMessage(c, http.StatusBadRequest, "custom fabric label is required")
		return
	}
	preserveBackground := true
	if req.PreserveBackground != nil {
		preserveBackground = *req.PreserveBackground
	}
	job := evolink.FabricJob{
		FabricType:         req.FabricType,
		FabricLabel:        req.FabricLabel,
		PatternPrompt:      req.PatternPrompt,
		AdvancedPrompt:     req.AdvancedPrompt,
		TextureStrength:    req.TextureStrength,
		PatternScale:       req.PatternScale,
		LockIdentity:       req.LockIdentity,
		PreserveBackground: preserveBackground,
	}
	reference := evolink.ReferenceImage{URL: req.ImageURL, DataURL: req.ImageDataURL}
	size := req.Size
	if size == "" {
		size = evolink.DefaultSize
	}
	result, err := h.Client.Submit(c.Request.Context(), evolink.GenerationRequest{
		Prompt:     evolink.BuildFabricDirective(job),
		Model:      evolink.ModelTextImage,
		Size:       size,
		References: []evolink.ReferenceImage{reference},
	})
	if err != nil {
		utils.GinFailedFromError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.CreateTaskResponse{
		TaskID:        result.TaskID,
		Status:        result.Status,
		Progress:      result.Progress,
		EstimatedTime: result.EstimatedTime,
	})
}
