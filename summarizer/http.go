package summarizer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/tunekit/core"
)

// MaxLabelLength 标签最大长度（按 rune 计）。
const MaxLabelLength = 64

type summarizeRequest struct {
	Prompt string `json:"prompt"`
}

type summarizeResponse struct {
	Label string `json:"label"`
}

// HTTP 通过 POST {"prompt": ...} 调用文本生成服务，读取 {"label": ...}。
type HTTP struct {
	endpoint string
	client   *http.Client
	headers  map[string]string
}

// HTTPOption 配置 HTTP。
type HTTPOption func(*HTTP)

// WithHTTPClient 使用自定义 HTTP 客户端。
func WithHTTPClient(c *http.Client) HTTPOption { return func(h *HTTP) { h.client = c } }

// WithHeader 为每个请求附加请求头，例如 Authorization。
func WithHeader(key, value string) HTTPOption {
	return func(h *HTTP) { h.headers[key] = value }
}

// NewHTTP 创建 HTTP 摘要客户端，timeout 为 0 时默认 10s。
func NewHTTP(endpoint string, timeout time.Duration, opts ...HTTPOption) *HTTP {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	h := &HTTP{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		headers:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTP) Summarize(ctx context.Context, description string) (string, error) {
	if h == nil || h.endpoint == "" {
		return "", core.ErrSummarizerUnavailable
	}
	body, err := json.Marshal(summarizeRequest{Prompt: description})
	if err != nil {
		return "", fmt.Errorf("summarizer: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("summarizer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarizer: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("summarizer: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summarizer: status=%d, body=%s", resp.StatusCode, truncate(string(data), 256))
	}
	var out summarizeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("summarizer: decode response: %w", err)
	}
	label := cleanLabel(out.Label)
	if label == "" {
		return "", fmt.Errorf("summarizer: empty label")
	}
	return label, nil
}

// cleanLabel 去掉引号与多余空白，只保留第一行。
func cleanLabel(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, "\"'` ")
	return truncate(strings.Join(strings.Fields(s), " "), MaxLabelLength)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
