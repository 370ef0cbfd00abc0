package assistant

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"beacon-chat/internal/models"
)

// UploadResult is the reply of POST /api/upload
type UploadResult struct {
	Attachment      models.FileAttachment `json:"attachment"`
	AnalysisStarted bool                  `json:"analysis_started"`
}

// HealthStatus is the reply of GET /api/health
type HealthStatus struct {
	Status       string `json:"status"`
	VectorSearch bool   `json:"vector_search"`
	LLM          string `json:"llm"`
	Sessions     int    `json:"sessions"`
}

// Healthy reports whether the backend declared itself healthy
func (h *HealthStatus) Healthy() bool {
	return h != nil && h.Status == "healthy"
}

// EditMessage persists an edited user message on the backend
func (c *Client) EditMessage(ctx context.Context, conversationID, messageID, content string) error {
	path := "/api/conversations/" + url.PathEscape(conversationID) + "/messages/" + url.PathEscape(messageID)
	payload := map[string]string{"content": content}

	if err := c.doJSON(ctx, http.MethodPut, path, payload, nil); err != nil {
		c.logger.Warn("EditMessage failed", zap.String("message_id", messageID), zap.Error(err))
		return err
	}

	c.logger.Info("EditMessage completed", zap.String("message_id", messageID))
	return nil
}

// SubmitFeedback records a like or dislike on the backend
func (c *Client) SubmitFeedback(ctx context.Context, fb models.Feedback) error {
	return c.doJSON(ctx, http.MethodPost, "/api/feedback", fb, nil)
}

// Health queries the backend health endpoint
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/health", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ClearHistory clears the backend's conversation memory
func (c *Client) ClearHistory(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.doJSON(ctx, http.MethodPost, "/api/clear", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// History returns the backend's conversation memory
func (c *Client) History(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/api/history", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CacheStats returns the backend answer-cache statistics
func (c *Client) CacheStats(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/api/cache/stats", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ClearCache empties the backend answer cache
func (c *Client) ClearCache(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.doJSON(ctx, http.MethodPost, "/api/cache/clear", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadFile streams a file to the backend as multipart form field "file".
// onProgress receives a non-decreasing percentage and 100 once the backend accepted the file.
func (c *Client) UploadFile(ctx context.Context, name string, r io.Reader, size int64, onProgress func(percent int)) (*UploadResult, error) {
	if onProgress == nil {
		onProgress = func(int) {}
	}

	c.logger.Info("UploadFile started", zap.String("file", name), zap.Int64("size", size))

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		part, err := form.CreateFormFile("file", name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		counter := &progressReader{r: r, total: size, report: onProgress}
		if _, err := io.Copy(part, counter); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.Close()
		c.logger.Warn("UploadFile failed", zap.String("file", name), zap.Error(err))
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		pr.Close()
		return nil, c.handleError(resp)
	}

	var result UploadResult
	if err := decodeJSON(resp.Body, &result); err != nil {
		return nil, err
	}
	if result.Attachment.Name == "" {
		result.Attachment.Name = name
	}
	if result.Attachment.Size == 0 {
		result.Attachment.Size = size
	}

	onProgress(100)
	c.logger.Info("UploadFile completed",
		zap.String("file", name),
		zap.String("attachment_id", result.Attachment.ID),
		zap.Bool("analysis_started", result.AnalysisStarted))
	return &result, nil
}

// progressReader reports read progress as a percentage capped below 100
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 && n > 0 {
		pct := int(p.read * 100 / p.total)
		// 100 is reserved for the backend's acknowledgement
		if pct > 99 {
			pct = 99
		}
		if pct > p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}
