package handler

import (
	"fmt"
	"mime"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	appErrors "github.com/uagrm-posgrado/admin-api/pkg/errors"
	"github.com/uagrm-posgrado/admin-api/pkg/response"
	"github.com/uagrm-posgrado/admin-api/pkg/storage"
)

// FileHandler serves documents persisted by the local store through signed
// download tokens. Not registered when the Cloudinary backend is active.
type FileHandler struct {
	store  *storage.LocalStore
	signer *storage.SignedURLSigner
}

// NewFileHandler constructs FileHandler.
func NewFileHandler(store *storage.LocalStore, signer *storage.SignedURLSigner) *FileHandler {
	return &FileHandler{store: store, signer: signer}
}

// Download godoc
// @Summary Download stored document
// @Description Serve a requisito document, QR image or photo via its signed token
// @Tags Files
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	if h.store == nil || h.signer == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "local file serving not configured"))
		return
	}

	relPath, _, err := h.signer.Parse(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token"))
		return
	}

	file, err := h.store.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "document not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to stat document"))
		return
	}

	contentType := mime.TypeByExtension(path.Ext(relPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", path.Base(relPath)))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
