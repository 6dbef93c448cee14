package evolink

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/atelierhq/evolink-http/internal/logger"
	"github.com/go-playground/validator/v10"
)

const DefaultBaseURL = "https://api.evolink.ai"

var validate = validator.New()

var dataURLPattern = regexp.MustCompile(`^data:(?P<mime>[^;]+);base64,(?P<data>[A-Za-z0-9+/=]+)$`)

type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
	Retries    int
}

// Client talks to the vendor's image generation API and normalizes its
// responses into the canonical records the orchestrator consumes.
type Client struct {
	doer    *retryingDoer
	baseURL string
	token   string
	logger  *logger.CustomLogger
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	retries := opts.Retries
	if retries == 0 {
		retries = defaultRetries
	} else if retries < 0 {
		retries = 0
	}
	return &Client{
		doer:    newRetryingDoer(opts.HTTPClient, opts.Timeout, retries),
		baseURL: base,
		token:   strings.TrimSpace(opts.APIKey),
		logger:  logger.NewCustomLogger().With("component", "evolink"),
	}
}

// SelectModel picks the target model: an explicit pin wins, otherwise
// reference images route to the fusion model and text-only requests to the
// fast text-to-image model.
func SelectModel(req GenerationRequest) string {
	if req.Model != "" {
		return req.Model
	}
	if len(req.References) > 0 {
		return ModelFusion
	}
	return ModelTextImage
}

// NormalizeSize maps the requested aspect ratio onto a supported vendor
// token, falling back to the default when unsupported or empty.
func NormalizeSize(size string) string {
	size = strings.TrimSpace(size)
	for _, token := range SizeTokens {
		if size == token {
			return size
		}
	}
	return DefaultSize
}

// ValidateRequest enforces the request bounds before any network call.
func ValidateRequest(req GenerationRequest) error {
	if err := validate.Struct(req); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok && len(fieldErrors) > 0 {
			field := fieldErrors[0]
			return &ValidationError{Field: strings.ToLower(field.Field()), Message: fmt.Sprintf("failed on %s constraint", field.Tag())}
		}
		return &ValidationError{Message: err.Error()}
	}
	for i, ref := range req.References {
		if ref.URL == "" && ref.DataURL == "" {
			return &ValidationError{Field: fmt.Sprintf("references[%d]", i), Message: "either url or data_url is required"}
		}
		if ref.DataURL != "" {
			mime, data, err := SplitDataURL(ref.DataURL)
			if err != nil {
				return &ValidationError{Field: fmt.Sprintf("references[%d]", i), Message: err.Error()}
			}
			if ref.MimeType != "" && !strings.EqualFold(ref.MimeType, mime) {
				return &ValidationError{Field: fmt.Sprintf("references[%d]", i), Message: "image metadata mismatch"}
			}
			if _, ok := SupportedReferenceMIME[strings.ToLower(mime)]; !ok {
				return &ValidationError{Field: fmt.Sprintf("references[%d]", i), Message: "unsupported image format"}
			}
			if decoded := base64.StdEncoding.DecodedLen(len(data)); decoded > MaxReferenceBytes {
				return &ValidationError{Field: fmt.Sprintf("references[%d]", i), Message: "image must be 10MB or smaller"}
			}
		}
		if ref.MimeType != "" {
			if _, ok := SupportedReferenceMIME[strings.ToLower(ref.MimeType)]; !ok {
				return &ValidationError{Field: fmt.Sprintf("references[%d]", i), Message: "unsupported image format"}
			}
		}
		if ref.SizeBytes > MaxReferenceBytes {
			return &ValidationError{Field: fmt.Sprintf("references[%d]", i), Message: "image must be 10MB or smaller"}
		}
	}
	return nil
}

// SplitDataURL splits a base64 data URL into mime type and payload.
func SplitDataURL(dataURL string) (mime string, data string, err error) {
	match := dataURLPattern.FindStringSubmatch(dataURL)
	if match == nil {
		err = fmt.Errorf("invalid data URL")
		return
	}
	mime = match[1]
	data = match[2]
	return
}

// BuildCreatePayload translates the generic request into the vendor wire
// payload, prefixing the fusion directive when reference images drive the
// fusion model without an explicit model pin.
func BuildCreatePayload(req GenerationRequest) createPayload {
	model := SelectModel(req)
	prompt := strings.TrimSpace(req.Prompt)
	if model == ModelFusion && req.Model == "" {
		if prompt == "" {
			prompt = FusionDirective
		} else {
			prompt = FusionDirective + " " + prompt
		}
	}
	payload := createPayload{
		Model:  model,
		Prompt: prompt,
		Size:   NormalizeSize(req.Size),
	}
	// the turbo model only understands size, not quality
	if model != ModelTextImage {
		quality := req.Quality
		if quality == "" {
			quality = DefaultQuality
		}
		payload.Quality = quality
	}
	if req.Seed > 0 {
		payload.Seed = req.Seed
	}
	for _, ref := range req.References {
		if ref.URL != "" {
			payload.ImageURLs = append(payload.ImageURLs, ref.URL)
		} else if ref.DataURL != "" {
			payload.ImageURLs = append(payload.ImageURLs, ref.DataURL)
		}
	}
	return payload
}

// createResponseBody covers the shapes the vendor uses for the create
// endpoint, including embedded error codes inside a 2xx response.
type createResponseBody struct {
	ID       string   `json:"id"`
	TaskID   string   `json:"task_id"`
	Status   string   `json:"status"`
	Progress *float64 `json:"progress"`
	Code     *int     `json:"code"`
	Message  string   `json:"message"`
	TaskInfo struct {
		EstimatedTime *float64 `json:"estimated_time"`
	} `json:"task_info"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Submit validates the request, posts it to the vendor's create endpoint and
// normalizes the response. Validation and configuration failures never reach
// the network.
func (c *Client) Submit(ctx context.Context, req GenerationRequest) (CreateResult, error) {
	if c.token == "" {
		return CreateResult{}, ErrMissingAPIKey
	}
	if err := ValidateRequest(req); err != nil {
		return CreateResult{}, err
	}
	payload := BuildCreatePayload(req)
	body, err := json.Marshal(payload)
	if err != nil {
		return CreateResult{}, err
	}
	resp, err := c.doer.Do(ctx, http.MethodPost, c.baseURL+"/v1/images/generations", c.headers(), body)
	if err != nil {
		return CreateResult{}, err
	}
	raw, vendorErr := c.interpret(resp)
	if vendorErr != nil {
		return CreateResult{}, vendorErr
	}
	var parsed createResponseBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return CreateResult{}, &VendorError{StatusCode: resp.StatusCode, Message: "unparseable create response", RawBody: string(raw)}
	}
	result := CreateResult{
		TaskID: firstNonEmpty(parsed.ID, parsed.TaskID),
		Status: MapVendorStatus(parsed.Status),
	}
	if parsed.Progress != nil {
		result.Progress = clampProgress(*parsed.Progress)
	}
	if parsed.TaskInfo.EstimatedTime != nil {
		result.EstimatedTime = int(*parsed.TaskInfo.EstimatedTime)
	}
	if result.TaskID == "" {
		return CreateResult{}, &VendorError{StatusCode: resp.StatusCode, Message: "create response carries no task id", RawBody: string(raw)}
	}
	c.logger.Infof("created generation task %s, model: %s, status: %s", result.TaskID, payload.Model, result.Status)
	return result, nil
}

// FetchStatus polls the vendor's task endpoint and normalizes whatever shape
// comes back.
func (c *Client) FetchStatus(ctx context.Context, taskID string) (StatusResult, error) {
	if c.token == "" {
		return StatusResult{}, ErrMissingAPIKey
	}
	if strings.TrimSpace(taskID) == "" {
		return StatusResult{}, &ValidationError{Field: "task_id", Message: "task id is required"}
	}
	resp, err := c.doer.Do(ctx, http.MethodGet, c.baseURL+"/v1/tasks/"+taskID, c.headers(), nil)
	if err != nil {
		return StatusResult{}, err
	}
	raw, vendorErr := c.interpret(resp)
	if vendorErr != nil {
		return StatusResult{}, vendorErr
	}
	return NormalizeStatusPayload(taskID, raw), nil
}

// interpret reads the response and converts HTTP errors and embedded vendor
// error codes into VendorError. A malformed body never causes a panic; it is
// carried as opaque text in RawBody.
func (c *Client) interpret(resp *http.Response) ([]byte, *VendorError) {
	raw, err := readAll(resp)
	if err != nil {
		return nil, &VendorError{StatusCode: resp.StatusCode, Message: "failed to read response body"}
	}
	var envelope struct {
		Code    *int   `json:"code"`
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	parseErr := json.Unmarshal(raw, &envelope)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		vendorErr := &VendorError{StatusCode: resp.StatusCode, RawBody: string(raw)}
		if parseErr == nil {
			vendorErr.Message = firstNonEmpty(envelope.Error.Message, envelope.Message)
			if envelope.Code != nil {
				vendorErr.Code = *envelope.Code
			}
		}
		return nil, vendorErr
	}
	if parseErr == nil && envelope.Code != nil && *envelope.Code != 200 && *envelope.Code != 0 {
		return nil, &VendorError{
			StatusCode: resp.StatusCode,
			Code:       *envelope.Code,
			Message:    firstNonEmpty(envelope.Error.Message, envelope.Message),
			RawBody:    string(raw),
		}
	}
	return raw, nil
}

func readAll(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *Client) headers() http.Header {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Authorization", "Bearer "+c.token)
	return header
}
