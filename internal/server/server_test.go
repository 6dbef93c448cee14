package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atelierhq/evolink-http/internal/evolink"
	"github.com/atelierhq/evolink-http/internal/orchestrator"
	"github.com/atelierhq/evolink-http/internal/server/handler"
	"github.com/atelierhq/evolink-http/internal/storage"
)

const testAPIKey = "gateway-key"

// fakeVendorBackend stands in for the upstream generation API.
type fakeVendorBackend struct {
	mu         sync.Mutex
	nextID     int
	lastCreate map[string]interface{}
}

func (f *fakeVendorBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/images/generations":
			f.mu.Lock()
			f.nextID++
			id := fmt.Sprintf("vendor-%d", f.nextID)
			f.lastCreate = map[string]interface{}{}
			json.NewDecoder(r.Body).Decode(&f.lastCreate)
			f.mu.Unlock()
			fmt.Fprintf(w, `{"id":%q,"status":"pending"}`, id)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/tasks/"):
			taskID := strings.TrimPrefix(r.URL.Path, "/v1/tasks/")
			fmt.Fprintf(w, `{"id":%q,"status":"succeeded","progress":100,"results":["https://cdn.vendor.ai/files/%s.png"]}`, taskID, taskID)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/responses":
			w.Write([]byte(`{"output_text":"a model in a silk slip dress, studio lighting"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func (f *fakeVendorBackend) createField(key string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastCreate == nil {
		return nil
	}
	return f.lastCreate[key]
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeVendorBackend) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := &fakeVendorBackend{}
	vendorServer := httptest.NewServer(backend.handler())
	t.Cleanup(vendorServer.Close)

	client := evolink.NewClient(evolink.Options{
		BaseURL: vendorServer.URL,
		APIKey:  "vendor-key",
	})
	orch := orchestrator.New(orchestrator.Options{
		Client:       client,
		PollInterval: 10 * time.Millisecond,
		TickInterval: 10 * time.Millisecond,
	})
	t.Cleanup(orch.Close)
	blobs, err := storage.NewFileBlobStore(t.TempDir(), "https://cdn.example.com")
	if err != nil {
		t.Fatalf("blob store: %s", err)
	}
	return InitRouter(testAPIKey, handler.New(client, orch, blobs)), backend
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("API-KEY", testAPIKey)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %s", recorder.Body.String(), err)
	}
}

func TestPermissionCheck(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("missing key must be rejected, got %d", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	req.Header.Set("API-KEY", "wrong")
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key must be rejected, got %d", recorder.Code)
	}
}

func TestCreateGeneration(t *testing.T) {
	router, backend := newTestRouter(t)

	recorder := doJSON(router, http.MethodPost, "/v1/generations", map[string]interface{}{
		"prompt": "a linen summer dress",
		"size":   "1:1",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	var created struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	decodeBody(t, recorder, &created)
	if created.TaskID != "vendor-1" {
		t.Fatalf("unexpected task id: %s", created.TaskID)
	}
	if backend.createField("model") != evolink.ModelTextImage {
		t.Fatalf("text-only request must use the turbo model, got %v", backend.createField("model"))
	}

	recorder = doJSON(router, http.MethodGet, "/v1/generations/vendor-1", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	var status struct {
		Status   string `json:"status"`
		ImageURL string `json:"image_url"`
	}
	decodeBody(t, recorder, &status)
	if status.Status != "completed" || status.ImageURL == "" {
		t.Fatalf("unexpected poll response: %+v", status)
	}
}

func TestCreateGenerationRejectsBadBody(t *testing.T) {
	router, _ := newTestRouter(t)
	recorder := doJSON(router, http.MethodPost, "/v1/generations", map[string]interface{}{
		"size": "1:1",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("missing prompt must be rejected, got %d", recorder.Code)
	}
	recorder = doJSON(router, http.MethodPost, "/v1/generations", map[string]interface{}{
		"prompt":  "fine",
		"quality": "8K",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unknown quality must be rejected, got %d", recorder.Code)
	}
}

func TestJobsLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doJSON(router, http.MethodPost, "/v1/jobs", map[string]interface{}{
		"prompt": "a wool coat on a city street",
	})
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	var job struct {
		ClientID string `json:"client_id"`
		Status   string `json:"status"`
	}
	decodeBody(t, recorder, &job)
	if job.ClientID == "" {
		t.Fatal("missing client id")
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		recorder = doJSON(router, http.MethodGet, "/v1/jobs/"+job.ClientID, nil)
		if recorder.Code != http.StatusOK {
			t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
		}
		var snapshot struct {
			Status    string `json:"status"`
			ResultURL string `json:"result_url"`
		}
		decodeBody(t, recorder, &snapshot)
		if snapshot.Status == "completed" {
			if snapshot.ResultURL == "" {
				t.Fatal("completed job must carry a result url")
			}
			break
		}
		if snapshot.Status == "failed" {
			t.Fatalf("job failed: %s", recorder.Body.String())
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never completed, last snapshot: %s", recorder.Body.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	recorder = doJSON(router, http.MethodGet, "/v1/jobs", nil)
	var list struct {
		Tasks []json.RawMessage `json:"tasks"`
	}
	decodeBody(t, recorder, &list)
	if len(list.Tasks) != 1 {
		t.Fatalf("expected one task, got %d", len(list.Tasks))
	}

	if recorder = doJSON(router, http.MethodDelete, "/v1/jobs/queued", nil); recorder.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	if recorder = doJSON(router, http.MethodDelete, "/v1/jobs", nil); recorder.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	recorder = doJSON(router, http.MethodGet, "/v1/jobs", nil)
	decodeBody(t, recorder, &list)
	if len(list.Tasks) != 0 {
		t.Fatalf("reset must clear the collection, got %d tasks", len(list.Tasks))
	}
}

func TestGetJobNotFound(t *testing.T) {
	router, _ := newTestRouter(t)
	recorder := doJSON(router, http.MethodGet, "/v1/jobs/no-such-task", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
}

func TestFabricSwap(t *testing.T) {
	router, backend := newTestRouter(t)

	recorder := doJSON(router, http.MethodPost, "/v1/fabric-swap", map[string]interface{}{
		"fabric_type": "silk",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("missing reference image must be rejected, got %d", recorder.Code)
	}

	recorder = doJSON(router, http.MethodPost, "/v1/fabric-swap", map[string]interface{}{
		"image_url":   "https://cdn.example.com/references/a.png",
		"fabric_type": "custom",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("custom fabric without a label must be rejected, got %d", recorder.Code)
	}

	recorder = doJSON(router, http.MethodPost, "/v1/fabric-swap", map[string]interface{}{
		"image_url":   "https://cdn.example.com/references/a.png",
		"fabric_type": "silk",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	prompt, _ := backend.createField("prompt").(string)
	if !strings.Contains(prompt, evolink.FabricPresets["silk"].Prompt) {
		t.Fatalf("fabric directive missing from vendor prompt: %q", prompt)
	}
	if backend.createField("model") != evolink.ModelTextImage {
		t.Fatalf("fabric swap must pin the turbo model, got %v", backend.createField("model"))
	}
}

func TestTryOn(t *testing.T) {
	router, backend := newTestRouter(t)

	recorder := doJSON(router, http.MethodPost, "/v1/try-on", map[string]interface{}{
		"model_url":     "https://cdn.example.com/references/person.png",
		"garment_url":   "https://cdn.example.com/references/garment.png",
		"fit_tightness": 90,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	if backend.createField("model") != evolink.ModelPro {
		t.Fatalf("try-on must use the pro model, got %v", backend.createField("model"))
	}
	prompt, _ := backend.createField("prompt").(string)
	if !strings.HasPrefix(prompt, evolink.TryOnDirective) || !strings.Contains(prompt, "90%") {
		t.Fatalf("unexpected try-on prompt: %q", prompt)
	}
}

func TestPromptExtract(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doJSON(router, http.MethodPost, "/v1/prompt-extract", map[string]interface{}{
		"image_data_url": "data:image/png;base64,aGVsbG8=",
		"hints":          "fabric details",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	var extracted struct {
		Prompt string `json:"prompt"`
	}
	decodeBody(t, recorder, &extracted)
	if extracted.Prompt != "a model in a silk slip dress, studio lighting" {
		t.Fatalf("unexpected prompt: %q", extracted.Prompt)
	}
}

func TestUploadReference(t *testing.T) {
	router, _ := newTestRouter(t)

	buildUpload := func(contentType string) (*bytes.Buffer, string) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="ref.png"`)
		header.Set("Content-Type", contentType)
		part, _ := writer.CreatePart(header)
		part.Write([]byte("fake image bytes"))
		writer.Close()
		return body, writer.FormDataContentType()
	}

	body, formType := buildUpload("image/png")
	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", body)
	req.Header.Set("Content-Type", formType)
	req.Header.Set("API-KEY", testAPIKey)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	var uploaded struct {
		URL string `json:"url"`
	}
	decodeBody(t, recorder, &uploaded)
	if !strings.HasPrefix(uploaded.URL, "https://cdn.example.com/references/") {
		t.Fatalf("unexpected url: %s", uploaded.URL)
	}

	body, formType = buildUpload("application/pdf")
	req = httptest.NewRequest(http.MethodPost, "/v1/uploads", body)
	req.Header.Set("Content-Type", formType)
	req.Header.Set("API-KEY", testAPIKey)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unsupported content type must be rejected, got %d", recorder.Code)
	}
}
