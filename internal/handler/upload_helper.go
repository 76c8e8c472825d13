package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/uagrm-posgrado/admin-api/pkg/errors"
	"github.com/uagrm-posgrado/admin-api/pkg/storage"
)

// fileFromForm extracts the named multipart file and returns it as an upload
// plus a cleanup func. The caller must invoke cleanup after the upload has
// been consumed.
func fileFromForm(c *gin.Context, field string) (storage.File, func(), error) {
	header, err := c.FormFile(field)
	if err != nil {
		return storage.File{}, nil, appErrors.Clone(appErrors.ErrValidation, field+" file is required")
	}
	src, err := header.Open()
	if err != nil {
		return storage.File{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to open uploaded file")
	}
	file := storage.File{
		Reader:      src,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	}
	return file, func() { src.Close() }, nil //nolint:errcheck
}
