package chat

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"beacon-chat/internal/metrics"
	"beacon-chat/internal/models"
)

// FileUpload is one file of an upload batch
type FileUpload struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// UploadReport summarizes a batch
type UploadReport struct {
	Attachments []models.FileAttachment `json:"attachments"`
	Failed      []string                `json:"failed"`
}

// UploadBatch uploads files concurrently and queues every success as a pending
// attachment for the next sent message, in input order. A failed file is
// reported and dropped without affecting its siblings.
func (c *Controller) UploadBatch(ctx context.Context, files []FileUpload) UploadReport {
	results := make([]*models.FileAttachment, len(files))

	var g errgroup.Group
	g.SetLimit(c.uploadConcurrency)

	for i, f := range files {
		g.Go(func() error {
			att, err := c.uploadOne(ctx, f)
			if err != nil {
				c.logger.Warn("Upload failed", zap.String("file", f.Name), zap.Error(err))
				c.metrics.UploadFinished(metrics.OutcomeError)
				c.notify(models.Notification{
					Level:    models.NotificationError,
					Title:    "Upload failed",
					Message:  fmt.Sprintf("%s: %v", f.Name, err),
					FileName: f.Name,
				})
				// Never fail the group: siblings keep going
				return nil
			}
			c.metrics.UploadFinished(metrics.OutcomeComplete)
			results[i] = att
			return nil
		})
	}
	g.Wait()

	var report UploadReport
	for i, att := range results {
		if att == nil {
			report.Failed = append(report.Failed, files[i].Name)
			continue
		}
		report.Attachments = append(report.Attachments, *att)
	}

	c.mu.Lock()
	c.pending = append(c.pending, report.Attachments...)
	c.mu.Unlock()

	c.logger.Info("UploadBatch completed",
		zap.Int("files", len(files)),
		zap.Int("uploaded", len(report.Attachments)),
		zap.Int("failed", len(report.Failed)))
	return report
}

func (c *Controller) uploadOne(ctx context.Context, f FileUpload) (*models.FileAttachment, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer rc.Close()

	var mu sync.Mutex
	last := -1
	onProgress := func(percent int) {
		mu.Lock()
		if percent <= last {
			mu.Unlock()
			return
		}
		last = percent
		mu.Unlock()
		c.store.Publish(Change{Kind: ChangeUploadProgress, FileName: f.Name, Percent: percent})
	}

	result, err := c.backend.UploadFile(ctx, f.Name, rc, f.Size, onProgress)
	if err != nil {
		return nil, err
	}

	att := result.Attachment
	if att.ID == "" {
		att.ID = c.newID()
	}
	if att.Name == "" {
		att.Name = f.Name
	}
	if result.AnalysisStarted {
		c.notify(models.Notification{
			Level:    models.NotificationInfo,
			Title:    "Analysis started",
			Message:  att.Name + " is being analyzed",
			FileName: att.Name,
		})
	}
	return &att, nil
}

// PendingAttachments returns the attachments queued for the next message
func (c *Controller) PendingAttachments() []models.FileAttachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.FileAttachment(nil), c.pending...)
}

// RemovePendingAttachment drops a queued attachment before sending
func (c *Controller) RemovePendingAttachment(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, a := range c.pending {
		if a.ID == id {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}
