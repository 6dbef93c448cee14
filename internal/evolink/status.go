package evolink

import (
	"encoding/json"
	"net/url"
	"strings"
)

// Canonical task statuses. Everything the vendor reports is folded into
// these; unknown strings pass through lowercased and are treated as
// non-terminal by callers.
const (
	StatusSubmitted = "submitted"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const maxSearchDepth = 10

var statusKeys = map[string]struct{}{
	"status":      {},
	"task_status": {},
	"taskstatus":  {},
	"state":       {},
	"task_state":  {},
}

var progressKeys = map[string]struct{}{
	"progress":      {},
	"task_progress": {},
	"percent":       {},
	"percentage":    {},
}

var resultKeys = map[string]struct{}{
	"url":        {},
	"image_url":  {},
	"imageurl":   {},
	"result_url": {},
	"resulturl":  {},
	"image":      {},
	"output_url": {},
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".gif"}

// CDN paths the vendor is known to serve results from; these URLs do not
// always carry an image extension.
var cdnPathHints = []string{"/files/", "/images/", "/outputs/", "/generations/", "/results/"}

// MapVendorStatus folds the vendor's status vocabulary into the canonical
// set, case-insensitively. Unknown values pass through lowercased.
func MapVendorStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "succeeded", "success", "done":
		return StatusCompleted
	case "failed", "error", "canceled", "cancelled":
		return StatusFailed
	case "":
		return StatusSubmitted
	default:
		return strings.ToLower(strings.TrimSpace(raw))
	}
}

// looksLikeImageURL accepts data URIs and http(s) URLs that either end in a
// known image extension or live under a known CDN path.
func looksLikeImageURL(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}
	if strings.HasPrefix(candidate, "data:image/") {
		return true
	}
	parsed, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" || parsed.Host == "" {
		return false
	}
	path := strings.ToLower(parsed.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	for _, hint := range cdnPathHints {
		if strings.Contains(path, hint) {
			return true
		}
	}
	return false
}

// statusCandidate is one extraction attempt over a vendor response shape.
type statusCandidate struct {
	status    string
	progress  int
	resultURL string
}

// score ranks candidates when no shape is definitively terminal: a resolved
// completion beats a failure, a failure beats any in-flight progress.
func (c statusCandidate) score() int {
	switch {
	case c.status == StatusCompleted && c.resultURL != "":
		return 1000
	case c.status == StatusFailed:
		return 500
	case c.status == StatusCompleted:
		return 200 + c.progress
	default:
		return c.progress
	}
}

func clampProgress(value float64) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return int(value)
}

// typedStatusBody is the fast path: the documented response shape with
// fields at the top level, optionally nested under data or task_info.
type typedStatusBody struct {
	ID       string            `json:"id"`
	TaskID   string            `json:"task_id"`
	Status   string            `json:"status"`
	Progress *float64          `json:"progress"`
	Results  []json.RawMessage `json:"results"`
	Data     json.RawMessage   `json:"data"`
	TaskInfo struct {
		Status        string   `json:"status"`
		Progress      *float64 `json:"progress"`
		EstimatedTime *float64 `json:"estimated_time"`
	} `json:"task_info"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NormalizeStatusPayload extracts a canonical StatusResult from an arbitrary
// vendor poll response. A sequence of typed extraction strategies runs first
// (top level, nested data, task_info, result arrays); a bounded-depth
// recursive search covers everything else. The best-scoring candidate wins
// unless an earlier strategy is definitively terminal.
func NormalizeStatusPayload(taskID string, raw []byte) StatusResult {
	best := statusCandidate{status: StatusSubmitted}

	consider := func(c statusCandidate) bool {
		if c.score() >= best.score() {
			best = c
		}
		return c.status == StatusCompleted && c.resultURL != "" || c.status == StatusFailed
	}

	var typed typedStatusBody
	if err := json.Unmarshal(raw, &typed); err == nil {
		if done := consider(typedCandidate(typed)); done {
			return finishStatus(taskID, best)
		}
		if len(typed.Data) > 0 {
			var nested typedStatusBody
			if err := json.Unmarshal(typed.Data, &nested); err == nil {
				if done := consider(typedCandidate(nested)); done {
					return finishStatus(taskID, best)
				}
			}
		}
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err == nil {
		// seed with the best typed candidate so the generic walk only adds
		// evidence
		c := best
		searchValue(generic, 0, &c)
		consider(c)
	}
	return finishStatus(taskID, best)
}

func typedCandidate(body typedStatusBody) statusCandidate {
	c := statusCandidate{status: MapVendorStatus(firstNonEmpty(body.Status, body.TaskInfo.Status))}
	if body.Progress != nil {
		c.progress = clampProgress(*body.Progress)
	} else if body.TaskInfo.Progress != nil {
		c.progress = clampProgress(*body.TaskInfo.Progress)
	}
	// only the first result is used even when the vendor returns several
	for _, result := range body.Results {
		var asString string
		if err := json.Unmarshal(result, &asString); err == nil {
			if looksLikeImageURL(asString) {
				c.resultURL = asString
				break
			}
			continue
		}
		var asObject map[string]interface{}
		if err := json.Unmarshal(result, &asObject); err == nil {
			if url := urlFromMap(asObject); url != "" {
				c.resultURL = url
				break
			}
		}
	}
	return c
}

func urlFromMap(object map[string]interface{}) string {
	for key, value := range object {
		if _, ok := resultKeys[strings.ToLower(key)]; !ok {
			continue
		}
		if s, ok := value.(string); ok && looksLikeImageURL(s) {
			return s
		}
	}
	return ""
}

// searchValue walks an arbitrary decoded JSON value collecting status,
// progress and result-URL evidence. Depth is bounded so a hostile or
// degenerate payload cannot recurse unboundedly.
func searchValue(value interface{}, depth int, c *statusCandidate) {
	if depth > maxSearchDepth {
		return
	}
	switch typed := value.(type) {
	case map[string]interface{}:
		for key, child := range typed {
			lower := strings.ToLower(key)
			if _, ok := statusKeys[lower]; ok {
				if s, isString := child.(string); isString {
					mapped := MapVendorStatus(s)
					switch {
					case mapped == StatusCompleted:
						c.status = mapped
					case mapped == StatusFailed && c.status != StatusCompleted:
						c.status = mapped
					case c.status == StatusSubmitted:
						c.status = mapped
					}
				}
			}
			if _, ok := progressKeys[lower]; ok {
				if n, isNumber := child.(float64); isNumber {
					if p := clampProgress(n); p > c.progress {
						c.progress = p
					}
				}
			}
			if s, isString := child.(string); isString && c.resultURL == "" {
				if _, ok := resultKeys[lower]; ok && looksLikeImageURL(s) {
					c.resultURL = s
				}
			}
			searchValue(child, depth+1, c)
		}
	case []interface{}:
		for _, child := range typed {
			if s, isString := child.(string); isString && c.resultURL == "" && looksLikeImageURL(s) {
				c.resultURL = s
				continue
			}
			searchValue(child, depth+1, c)
		}
	}
}

func finishStatus(taskID string, c statusCandidate) StatusResult {
	result := StatusResult{
		TaskID:    taskID,
		Status:    c.status,
		Progress:  c.progress,
		ResultURL: c.resultURL,
	}
	if result.Status == StatusCompleted && result.ResultURL != "" {
		result.Progress = 100
	}
	return result
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
