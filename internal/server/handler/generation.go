package handler

import (
	"net/http"

	"github.com/atelierhq/evolink-http/internal/evolink"
	"github.com/atelierhq/evolink-http/internal/model"
	"github.com/atelierhq/evolink-http/internal/utils"
	"github.com/gin-gonic/gin"
)

// CreateGenerationTask proxies a generic create request to the vendor and
// returns the canonical task record.
func (h *Handler) CreateGenerationTask(c *gin.Context) {
	var req model.CreateGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.GinFailedWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.Client.Submit(c.Request.Context(), generationRequestFromModel(req))
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

// GetGenerationTask polls the vendor for one task and returns the normalized
// status. A completed status without an extractable image URL is reported
// with an empty image_url so callers keep polling.
func (h *Handler) GetGenerationTask(c *gin.Context) {
	taskID := c.Param("task_id")
	if taskID == "" {
		utils.GinFailedWithMessage(c, http.StatusBadRequest, "task id is required")
		return
	}
	status, err := h.Client.FetchStatus(c.Request.Context(), taskID)
	if err != nil {
		utils.GinFailedFromError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.TaskStatusResponse{
		TaskID:   status.TaskID,
		Status:   status.Status,
		Progress: status.Progress,
		ImageURL: status.ResultURL,
	})
}

func generationRequestFromModel(req model.CreateGenerationRequest) evolink.GenerationRequest {
	out := evolink.GenerationRequest{
		Prompt:  req.Prompt,
		Model:   req.Model,
		Size:    req.Size,
		Quality: req.Quality,
		Seed:    req.Seed,
	}
	for _, url := range req.ReferenceURLs {
		out.References = append(out.References, evolink.ReferenceImage{URL: url})
	}
	return out
}
