package model

// CreateGenerationRequest is the generic create payload accepted by the
// gateway. References must already be uploaded (URLs) or inlined as data
// URLs.
type CreateGenerationRequest struct {
	Prompt        string   `json:"prompt" binding:"required,min=1,max=2000"`
	Model         string   `json:"model" binding:"omitempty,oneof=z-image-turbo nano-banana-2-lite gemini-3-pro-image-preview"`
	Size          string   `json:"size"`
	Quality       string   `json:"quality" binding:"omitempty,oneof=1K 2K 4K"`
	Seed          int      `json:"seed" binding:"omitempty,min=1,max=2147483647"`
	ReferenceURLs []string `json:"reference_urls" binding:"omitempty,max=5,dive,url"`
}

// FabricSwapRequest drives a fabric material swap over one reference photo.
type FabricSwapRequest struct {
	ImageURL           string `json:"image_url" binding:"omitempty,url"`
	ImageDataURL       string `json:"image_data_url"`
	FabricType         string `json:"fabric_type" binding:"required,oneof=silk denim knit custom"`
	FabricLabel        string `json:"fabric_label"`
	PatternPrompt      string `json:"pattern_prompt"`
	AdvancedPrompt     string `json:"advanced_prompt"`
	TextureStrength    int    `json:"texture_strength" binding:"omitempty,min=10,max=100"`
	PatternScale       int    `json:"pattern_scale" binding:"omitempty,min=40,max=200"`
	LockIdentity       bool   `json:"lock_identity"`
	PreserveBackground *bool  `json:"preserve_background"`
	Size               string `json:"size"`
}

// TryOnRequest dresses the person from the model photo in the garment photo.
type TryOnRequest struct {
	ModelURL     string `json:"model_url" binding:"required,url"`
	GarmentURL   string `json:"garment_url" binding:"required,url"`
	Prompt       string `json:"prompt" binding:"omitempty,max=2000"`
	Size         string `json:"size"`
	FitTightness int    `json:"fit_tightness" binding:"omitempty,min=0,max=100"`
}

// PromptExtractRequest asks the vendor to read an image back into a reusable
// text-to-image prompt.
type PromptExtractRequest struct {
	ImageDataURL string `json:"image_data_url" binding:"required"`
	Hints        string `json:"hints" binding:"omitempty,max=500"`
}

// CreateTaskResponse mirrors the canonical create record.
type CreateTaskResponse struct {
	TaskID        string `json:"task_id"`
	Status        string `json:"status"`
	Progress      int    `json:"progress"`
	EstimatedTime int    `json:"estimated_time,omitempty"`
}

// TaskStatusResponse mirrors the canonical poll record. ImageURL stays empty
// until a result URL was extracted.
type TaskStatusResponse struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	ImageURL string `json:"image_url,omitempty"`
}

// SubmitJobRequest enters a task into the orchestrator queue.
type SubmitJobRequest struct {
	CreateGenerationRequest
}

// JobResponse is a read-only snapshot of an orchestrated task.
type JobResponse struct {
	ClientID       string `json:"client_id"`
	Status         string `json:"status"`
	Progress       int    `json:"progress"`
	EstimatedTime  int    `json:"estimated_time,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	VendorTaskID   string `json:"vendor_task_id,omitempty"`
	ResultURL      string `json:"result_url,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CreatedAt      int64  `json:"created_at"`
	Prompt         string `json:"prompt"`
	Model          string `json:"model,omitempty"`
}

// UploadResponse reports where an uploaded reference image landed.
type UploadResponse struct {
	URL string `json:"url"`
}

// PromptExtractResponse carries the extracted prompt.
type PromptExtractResponse struct {
	Prompt string `json:"prompt"`
}

// FailureResponse is the uniform error body.
type FailureResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
