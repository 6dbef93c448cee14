package handler

import (
	"net/http"

	"github.com/atelierhq/evolink-http/internal/model"
	"github.com/atelierhq/evolink-http/internal/orchestrator"
	"github.com/atelierhq/evolink-http/internal/utils"
	"github.com/gin-gonic/gin"
)

// SubmitJob enqueues a generation task with the orchestrator and returns its
// client id immediately; admission control decides when the vendor call
// happens.
func (h *Handler) SubmitJob(c *gin.Context) {
	var req model.SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.GinFailedWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	clientID := h.Orchestrator.Submit(generationRequestFromModel(req.CreateGenerationRequest))
	snapshot, _ := h.Orchestrator.GetTask(clientID)
	c.JSON(http.StatusAccepted, jobResponseFromTask(snapshot))
}

// GetJob returns a read-only snapshot of one orchestrated task.
func (h *Handler) GetJob(c *gin.Context) {
	clientID := c.Param("client_id")
	snapshot, ok := h.Orchestrator.GetTask(clientID)
	if !ok {
		utils.GinFailedWithMessage(c, http.StatusNotFound, "task not found")
		return
	}
	c.JSON(http.StatusOK, jobResponseFromTask(snapshot))
}

// ListJobs returns snapshots of the whole task collection, most recent
// first.
func (h *Handler) ListJobs(c *gin.Context) {
	tasks := h.Orchestrator.Tasks()
	out := make([]model.JobResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, jobResponseFromTask(task))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

// CancelQueuedJobs drops pending work and stops client-side polling. The
// vendor keeps running any generation already in flight.
func (h *Handler) CancelQueuedJobs(c *gin.Context) {
	h.Orchestrator.CancelQueue()
	c.Status(http.StatusNoContent)
}

// ResetJobs clears all tasks and timers, including completed history.
func (h *Handler) ResetJobs(c *gin.Context) {
	h.Orchestrator.ResetAll()
	c.Status(http.StatusNoContent)
}

func jobResponseFromTask(task orchestrator.Task) model.JobResponse {
	return model.JobResponse{
		ClientID:       task.ClientID,
		Status:         string(task.Status),
		Progress:       task.Progress,
		EstimatedTime:  task.EstimatedTime,
		ElapsedSeconds: task.ElapsedSeconds,
		VendorTaskID:   task.VendorTaskID,
		ResultURL:      task.ResultURL,
		ErrorMessage:   task.ErrorMessage,
		CreatedAt:      task.CreatedAt,
		Prompt:         task.Request.Prompt,
		Model:          task.Request.Model,
	}
}
