package evolink

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(Options{
		BaseURL: server.URL,
		APIKey:  "test-key",
	})
	return client, server
}

func TestSubmitTextOnly(t *testing.T) {
	var requests int
	var got createPayload
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Method != http.MethodPost || r.URL.Path != "/v1/images/generations" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Fatalf("unexpected authorization header: %q", auth)
		}
		if r.Header.Get("Idempotency-Key") == "" {
			t.Fatal("missing idempotency key")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode payload: %s", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"task-1","status":"pending","progress":0,"task_info":{"estimated_time":12}}`))
	})

	result, err := client.Submit(context.Background(), GenerationRequest{
		Prompt: "a silk dress on a mannequin",
		Size:   "portrait",
	})
	if err != nil {
		t.Fatalf("submit: %s", err)
	}
	if requests != 1 {
		t.Fatalf("expected one request, got %d", requests)
	}
	if result.TaskID != "task-1" {
		t.Fatalf("unexpected task id: %s", result.TaskID)
	}
	if result.Status != "pending" {
		t.Fatalf("unexpected status: %s", result.Status)
	}
	if result.EstimatedTime != 12 {
		t.Fatalf("unexpected estimated time: %d", result.EstimatedTime)
	}
	if got.Model != ModelTextImage {
		t.Fatalf("expected turbo model, got %s", got.Model)
	}
	if got.Quality != "" {
		t.Fatalf("turbo model must not carry quality, got %q", got.Quality)
	}
	if got.Size != DefaultSize {
		t.Fatalf("unsupported size must fall back to default, got %q", got.Size)
	}
}

func TestSubmitWithReferencesUsesFusionModel(t *testing.T) {
	var got createPayload
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode payload: %s", err)
		}
		w.Write([]byte(`{"task_id":"task-2","status":"submitted"}`))
	})

	dataURL := "data:image/png;base64,aGVsbG8="
	result, err := client.Submit(context.Background(), GenerationRequest{
		Prompt:     "merge the garment onto the model",
		Size:       "1:1",
		References: []ReferenceImage{{DataURL: dataURL}},
	})
	if err != nil {
		t.Fatalf("submit: %s", err)
	}
	if result.TaskID != "task-2" {
		t.Fatalf("unexpected task id: %s", result.TaskID)
	}
	if got.Model != ModelFusion {
		t.Fatalf("expected fusion model, got %s", got.Model)
	}
	if !strings.HasPrefix(got.Prompt, FusionDirective) {
		t.Fatalf("fusion prompt must start with the directive, got %q", got.Prompt)
	}
	if got.Quality != DefaultQuality {
		t.Fatalf("expected default quality, got %q", got.Quality)
	}
	if got.Size != "1:1" {
		t.Fatalf("unexpected size: %s", got.Size)
	}
	if len(got.ImageURLs) != 1 || got.ImageURLs[0] != dataURL {
		t.Fatalf("unexpected image urls: %v", got.ImageURLs)
	}
}

func TestSubmitPinnedModelSkipsDirective(t *testing.T) {
	var got createPayload
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode payload: %s", err)
		}
		w.Write([]byte(`{"id":"task-3"}`))
	})

	_, err := client.Submit(context.Background(), GenerationRequest{
		Prompt:     "studio try-on",
		Model:      ModelPro,
		References: []ReferenceImage{{URL: "https://img.example.com/person.png"}},
	})
	if err != nil {
		t.Fatalf("submit: %s", err)
	}
	if got.Model != ModelPro {
		t.Fatalf("expected pinned model, got %s", got.Model)
	}
	if strings.HasPrefix(got.Prompt, FusionDirective) {
		t.Fatal("pinned model must not receive the fusion directive")
	}
}

func TestSubmitEmbeddedVendorError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":1002,"message":"insufficient credit"}`))
	})

	_, err := client.Submit(context.Background(), GenerationRequest{Prompt: "anything"})
	var vendorErr *VendorError
	if !errors.As(err, &vendorErr) {
		t.Fatalf("expected VendorError, got %v", err)
	}
	if vendorErr.Code != 1002 {
		t.Fatalf("unexpected vendor code: %d", vendorErr.Code)
	}
	if vendorErr.Message != "insufficient credit" {
		t.Fatalf("unexpected message: %s", vendorErr.Message)
	}
}

func TestSubmitHTTPErrorNotRetried(t *testing.T) {
	var requests int
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("service melting"))
	})

	_, err := client.Submit(context.Background(), GenerationRequest{Prompt: "anything"})
	var vendorErr *VendorError
	if !errors.As(err, &vendorErr) {
		t.Fatalf("expected VendorError, got %v", err)
	}
	if vendorErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status code: %d", vendorErr.StatusCode)
	}
	if vendorErr.RawBody != "service melting" {
		t.Fatalf("unexpected raw body: %q", vendorErr.RawBody)
	}
	if requests != 1 {
		t.Fatalf("vendor errors must not be retried, saw %d requests", requests)
	}
}

func TestSubmitMissingTaskID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"pending"}`))
	})

	_, err := client.Submit(context.Background(), GenerationRequest{Prompt: "anything"})
	var vendorErr *VendorError
	if !errors.As(err, &vendorErr) {
		t.Fatalf("expected VendorError, got %v", err)
	}
}

func TestSubmitValidationStaysOffline(t *testing.T) {
	var requests int
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
	})

	cases := []GenerationRequest{
		{},
		{Prompt: strings.Repeat("x", MaxPromptChars+1)},
		{Prompt: "ok", Quality: "8K"},
		{Prompt: "ok", References: []ReferenceImage{{}}},
		{Prompt: "ok", References: []ReferenceImage{{DataURL: "data:image/tiff;base64,aGVsbG8="}}},
		{Prompt: "ok", References: []ReferenceImage{{DataURL: "not a data url"}}},
		{Prompt: "ok", References: []ReferenceImage{{URL: "https://img.example.com/a.png", MimeType: "image/png", SizeBytes: MaxReferenceBytes + 1}}},
	}
	for i, req := range cases {
		_, err := client.Submit(context.Background(), req)
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("case %d: expected ValidationError, got %v", i, err)
		}
	}
	if requests != 0 {
		t.Fatalf("validation failures must not reach the network, saw %d requests", requests)
	}
}

func TestSubmitMissingAPIKey(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()
	client := NewClient(Options{BaseURL: server.URL})

	_, err := client.Submit(context.Background(), GenerationRequest{Prompt: "anything"})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if requests != 0 {
		t.Fatalf("missing credential must not reach the network, saw %d requests", requests)
	}
}

func TestFetchStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/tasks/task-9" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"id":"task-9","status":"succeeded","results":["https://cdn.vendor.ai/files/out.png"]}`))
	})

	result, err := client.FetchStatus(context.Background(), "task-9")
	if err != nil {
		t.Fatalf("fetch status: %s", err)
	}
	if !result.Resolved() {
		t.Fatalf("expected resolved result, got %+v", result)
	}
	if result.TaskID != "task-9" {
		t.Fatalf("unexpected task id: %s", result.TaskID)
	}
}

func TestFetchStatusEmptyTaskID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.FetchStatus(context.Background(), "  ")
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSplitDataURL(t *testing.T) {
	mime, data, err := SplitDataURL("data:image/png;base64,aGVsbG8=")
	if err != nil {
		t.Fatalf("split: %s", err)
	}
	if mime != "image/png" || data != "aGVsbG8=" {
		t.Fatalf("unexpected parts: %s %s", mime, data)
	}
	if _, _, err := SplitDataURL("https://example.com/a.png"); err == nil {
		t.Fatal("expected error for non data URL")
	}
}

func TestNormalizeSize(t *testing.T) {
	if got := NormalizeSize("16:9"); got != "16:9" {
		t.Fatalf("unexpected size: %s", got)
	}
	if got := NormalizeSize(""); got != DefaultSize {
		t.Fatalf("unexpected fallback: %s", got)
	}
	if got := NormalizeSize("512x512"); got != DefaultSize {
		t.Fatalf("unexpected fallback: %s", got)
	}
}
