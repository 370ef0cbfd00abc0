package api

import (
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"beacon-chat/internal/chat"
	"beacon-chat/internal/models"
)

const (
	uploadField     = "files"
	uploadMaxMemory = 32 << 20
)

// UploadHandler handles batch uploads and the pending attachment list
type UploadHandler struct {
	controller *chat.Controller
	logger     *zap.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(controller *chat.Controller, logger *zap.Logger) *UploadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadHandler{controller: controller, logger: logger}
}

// Upload handles POST /api/uploads. Partial failures still answer 200;
// the report lists the failed file names.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(uploadMaxMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "No files in field \""+uploadField+"\"")
		return
	}

	files := make([]chat.FileUpload, 0, len(headers))
	for _, fh := range headers {
		files = append(files, chat.FileUpload{
			Name: fh.Filename,
			Size: fh.Size,
			Open: openPart(fh),
		})
	}

	h.logger.Info("Upload batch started", zap.Int("files", len(files)))
	report := h.controller.UploadBatch(r.Context(), files)
	if report.Attachments == nil {
		report.Attachments = []models.FileAttachment{}
	}
	if report.Failed == nil {
		report.Failed = []string{}
	}
	writeJSON(w, http.StatusOK, report)
}

// Pending handles GET /api/uploads
func (h *UploadHandler) Pending(w http.ResponseWriter, r *http.Request) {
	list := h.controller.PendingAttachments()
	if list == nil {
		list = []models.FileAttachment{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Remove handles DELETE /api/uploads/{id}
func (h *UploadHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if !h.controller.RemovePendingAttachment(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "Attachment not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func openPart(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return fh.Open()
	}
}
