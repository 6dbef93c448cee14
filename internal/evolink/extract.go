package evolink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ExtractorSystemPrompt instructs the vision model to return a reusable
// text-to-image prompt for the supplied photo.
const ExtractorSystemPrompt = "You are a prompt extractor for text-to-image models. Read the image and return a concise, comma-separated prompt covering subject, outfit/material cues, background, lighting, camera framing, and mood. Keep it actionable for generation."

type extractRequest struct {
	Model string           `json:"model"`
	Input []extractMessage `json:"input"`
}

type extractMessage struct {
	Role    string           `json:"role"`
	Content []extractContent `json:"content"`
}

type extractContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// ExtractPrompt sends an image to the vendor's responses endpoint and digs a
// usable prompt out of the reply. The response shape varies between
// output_text, output arrays and chat-style choices; all are attempted.
func (c *Client) ExtractPrompt(ctx context.Context, imageDataURL, hints string) (string, error) {
	if c.token == "" {
		return "", ErrMissingAPIKey
	}
	mime, _, err := SplitDataURL(imageDataURL)
	if err != nil {
		return "", &ValidationError{Field: "image", Message: err.Error()}
	}
	if _, ok := SupportedReferenceMIME[strings.ToLower(mime)]; !ok {
		return "", &ValidationError{Field: "image", Message: "unsupported image format"}
	}
	userText := ExtractorSystemPrompt
	if hints = strings.TrimSpace(hints); hints != "" {
		userText = fmt.Sprintf("%s Focus on: %s.", ExtractorSystemPrompt, hints)
	}
	payload := extractRequest{
		Model: ModelPro,
		Input: []extractMessage{{
			Role: "user",
			Content: []extractContent{
				{Type: "input_text", Text: userText},
				{Type: "input_image", ImageURL: imageDataURL},
			},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	resp, err := c.doer.Do(ctx, http.MethodPost, c.baseURL+"/v1/responses", c.headers(), body)
	if err != nil {
		return "", err
	}
	raw, vendorErr := c.interpret(resp)
	if vendorErr != nil {
		return "", vendorErr
	}
	prompt := extractPromptFromResponse(raw)
	if prompt == "" {
		return "", &VendorError{StatusCode: resp.StatusCode, Message: "no prompt in extractor response", RawBody: string(raw)}
	}
	return prompt, nil
}

func extractPromptFromResponse(raw []byte) string {
	var envelope struct {
		Data       json.RawMessage `json:"data"`
		OutputText string          `json:"output_text"`
		Output     []struct {
			Text    string          `json:"text"`
			Content json.RawMessage `json:"content"`
		} `json:"output"`
		Choices []struct {
			Message struct {
				Content json.RawMessage `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ""
	}
	// some gateways wrap the whole reply under data
	if len(envelope.Data) > 0 {
		if nested := extractPromptFromResponse(envelope.Data); nested != "" {
			return nested
		}
	}
	if text := strings.TrimSpace(envelope.OutputText); text != "" {
		return text
	}
	var merged []string
	for _, item := range envelope.Output {
		if text := strings.TrimSpace(item.Text); text != "" {
			merged = append(merged, text)
			continue
		}
		if text := flattenContent(item.Content); text != "" {
			merged = append(merged, text)
		}
	}
	if len(merged) > 0 {
		return strings.TrimSpace(strings.Join(merged, "\n"))
	}
	for _, choice := range envelope.Choices {
		if text := flattenContent(choice.Message.Content); text != "" {
			return text
		}
	}
	return ""
}

// flattenContent accepts either a plain string or an array of text parts.
func flattenContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return strings.TrimSpace(asString)
	}
	var asParts []interface{}
	if err := json.Unmarshal(raw, &asParts); err == nil {
		var parts []string
		for _, part := range asParts {
			switch typed := part.(type) {
			case string:
				if text := strings.TrimSpace(typed); text != "" {
					parts = append(parts, text)
				}
			case map[string]interface{}:
				if text, ok := typed["text"].(string); ok && strings.TrimSpace(text) != "" {
					parts = append(parts, strings.TrimSpace(text))
				}
			}
		}
		return strings.TrimSpace(strings.Join(parts, " "))
	}
	return ""
}
