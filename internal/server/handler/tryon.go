package handler

import (
	"net/http"

	"github.com/atelierhq/evolink-http/internal/evolink"
	"github.com/atelierhq/evolink-http/internal/model"
	"github.com/atelierhq/evolink-http/internal/utils"
	"github.com/gin-gonic/gin"
)

// CreateTryOnTask submits a virtual try-on: the person from the model photo
// dressed in the garment photo.
func (h *Handler) CreateTryOnTask(c *gin.Context) {
	var req model.TryOnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.GinFailedWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	size := req.Size
	if size == "" {
		size = evolink.DefaultSize
	}
	prompt := evolink.BuildTryOnDirective(evolink.TryOnJob{
		Prompt:       req.Prompt,
		FitTightness: req.FitTightness,
	})
	result, err := h.Client.Submit(c.Request.Context(), evolink.GenerationRequest{
		Prompt: prompt,
		Model:  evolink.ModelPro,
		Size:   size,
		References: []evolink.ReferenceImage{
			{URL: req.ModelURL},
			{URL: req.GarmentURL},
		},
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
