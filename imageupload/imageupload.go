// Package imageupload implements the gateway's one local, non-bridged
// endpoint: it writes an uploaded image to disk and hands back its public
// URL, without involving the broker at all.
package imageupload

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relaygate/gateway/contracts"
	"github.com/relaygate/gateway/httpresp"
)

var allowedExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true,
}

// allowedTypes maps an imageType path parameter to the storage subdirectory
// it's written under.
var allowedTypes = map[string]string{
	"recipe/main": "recipe/main",
	"recipe/step": "recipe/step",
	"profile":     "profile",
	"general":     "general",
}

const maxFileSize = 10 << 20 // 10 MiB

// Handler serves multipart/form-data image uploads.
type Handler struct {
	baseDir string
	baseURL string
}

// New creates a Handler that stores uploads under baseDir and serves them
// from baseURL.
func New(baseDir, baseURL string) (*Handler, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("imageupload: cannot create storage directory: %w", err)
	}
	return &Handler{baseDir: baseDir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload handles POST /api/images/{imageType}. The imageType path segment
// must be one of the entries in allowedTypes.
func (h *Handler) Upload(imageType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subdir, ok := allowedTypes[imageType]
		if !ok {
			httpresp.WriteError(w, http.StatusBadRequest, "unsupported image type")
			return
		}

		if r.ContentLength > maxFileSize {
			httpresp.WriteError(w, http.StatusRequestEntityTooLarge, "file exceeds the 10MB limit")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httpresp.WriteError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()

		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
		if !allowedExtensions[ext] {
			httpresp.WriteError(w, http.StatusBadRequest, "unsupported file extension: "+ext)
			return
		}

		targetDir := filepath.Join(h.baseDir, subdir)
		if err := os.MkdirAll(targetDir, 0o755); err != nil {
			httpresp.WriteError(w, http.StatusInternalServerError, "cannot create storage directory")
			return
		}

		filename := generateFilename(ext)
		targetPath := filepath.Join(targetDir, filename)

		dst, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			httpresp.WriteError(w, http.StatusInternalServerError, "cannot store file")
			return
		}
		defer dst.Close()

		written, err := io.CopyN(dst, file, maxFileSize+1)
		if err != nil && err != io.EOF {
			httpresp.WriteError(w, http.StatusInternalServerError, "cannot store file")
			return
		}
		if written > maxFileSize {
			os.Remove(targetPath)
			httpresp.WriteError(w, http.StatusRequestEntityTooLarge, "file exceeds the 10MB limit")
			return
		}

		imageURL := h.baseURL + "/" + subdir + "/" + filename
		httpresp.WriteSuccess(w, http.StatusCreated, contracts.ImageURL{URL: imageURL})
	}
}

func generateFilename(ext string) string {
	timestamp := time.Now().Format("20060102_150405")
	return fmt.Sprintf("%s_%s.%s", timestamp, uuid.New().String()[:8], ext)
}
