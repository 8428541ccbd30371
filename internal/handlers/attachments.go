package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"agrimarket/internal/attachments"
	"agrimarket/internal/services"
)

// UploadAttachmentHandler обрабатывает POST /api/attachments?kind=audio|image.
// Тело - сам файл, клиент потом кладёт URL в audioChat.
func (h *Handler) UploadAttachmentHandler(w http.ResponseWriter, r *http.Request) {
	var folder string
	switch r.URL.Query().Get("kind") {
	case "audio":
		folder = attachments.FolderAudio
	case "image", "":
		folder = attachments.FolderProductImages
	default:
		h.writeError(w, r, &services.ValidationError{Field: "kind", Reason: "must be audio or image"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAttachmentBody)
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, &services.ValidationError{Reason: "attachment is too large"})
			return
		}
		h.writeError(w, r, &services.ValidationError{Reason: "failed to read request body"})
		return
	}
	if len(data) == 0 {
		h.writeError(w, r, &services.ValidationError{Field: "body", Reason: "is empty"})
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.AttachmentTimeout)
	defer cancel()
	a, err := h.Files.Upload(ctx, folder, data, contentType)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", services.ErrUpload, err))
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "url": a.URL})
}
