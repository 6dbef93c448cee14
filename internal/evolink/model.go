package evolink

// Models exposed by the vendor. The fusion model accepts reference images,
// the turbo model is text-only and ignores the quality knob.
const (
	ModelTextImage = "z-image-turbo"
	ModelFusion    = "nano-banana-2-lite"
	ModelPro       = "gemini-3-pro-image-preview"
)

const (
	DefaultSize    = "3:4"
	DefaultQuality = "2K"

	MaxPromptChars     = 2000
	MaxReferenceImages = 5
	MaxReferenceBytes  = 10 * 1024 * 1024
)

var SizeTokens = []string{"auto", "1:1", "2:3", "3:2", "3:4", "4:3", "4:5", "5:4", "9:16", "16:9", "21:9"}

var QualityTokens = []string{"1K", "2K", "4K"}

var SupportedReferenceMIME = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/webp": {},
}

// ReferenceImage is one user-supplied reference, either already uploaded and
// addressable by URL or carried inline as a base64 data URL.
type ReferenceImage struct {
	URL       string `json:"url,omitempty"`
	DataURL   string `json:"data_url,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	SizeBytes int    `json:"size_bytes,omitempty"`
}

// GenerationRequest is the generic request shape accepted by the adapter.
// Immutable once handed to Submit.
type GenerationRequest struct {
	Prompt     string           `json:"prompt" validate:"required,min=1,max=2000"`
	Model      string           `json:"model,omitempty" validate:"omitempty,oneof=z-image-turbo nano-banana-2-lite gemini-3-pro-image-preview"`
	Size       string           `json:"size,omitempty"`
	Quality    string           `json:"quality,omitempty" validate:"omitempty,oneof=1K 2K 4K"`
	Seed       int              `json:"seed,omitempty" validate:"omitempty,min=1,max=2147483647"`
	References []ReferenceImage `json:"references,omitempty" validate:"max=5"`
}

// CreateResult is the canonical record produced from the vendor's create
// response, whatever shape the vendor chose for it.
type CreateResult struct {
	TaskID        string `json:"task_id"`
	Status        string `json:"status"`
	Progress      int    `json:"progress"`
	EstimatedTime int    `json:"estimated_time"`
}

// StatusResult is the canonical record produced from the vendor's poll
// response. ResultURL stays empty until a usable image URL was extracted.
type StatusResult struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	ResultURL string `json:"result_url,omitempty"`
}

// Resolved reports whether the task reached terminal success: a completed
// status alone is not enough, the vendor must also have produced a result
// URL. A completed status with no URL keeps the task pending.
func (r StatusResult) Resolved() bool {
	return r.Status == StatusCompleted && r.ResultURL != ""
}

// Failed reports terminal vendor-side failure.
func (r StatusResult) Failed() bool {
	return r.Status == StatusFailed
}

// createPayload is the vendor wire format for POST /v1/images/generations.
type createPayload struct {
	Model     string   `json:"model"`
	Prompt    string   `json:"prompt"`
	Size      string   `json:"size,omitempty"`
	Quality   string   `json:"quality,omitempty"`
	N         int      `json:"n,omitempty"`
	Seed      int      `json:"seed,omitempty"`
	NSFWCheck bool     `json:"nsfw_check"`
	ImageURLs []string `json:"image_urls,omitempty"`
}
