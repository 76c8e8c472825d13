package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uagrm-posgrado/admin-api/pkg/storage"
)

func newFileHandlerFixture(t *testing.T) (*FileHandler, *storage.LocalStore, *storage.SignedURLSigner) {
	t.Helper()
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost:8080/files", signer)
	require.NoError(t, err)
	return NewFileHandler(store, signer), store, signer
}

func TestFileHandlerDownloadServesStoredDocument(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, store, _ := newFileHandlerFixture(t)

	content := []byte("%PDF-1.4 prueba")
	file := storage.File{Reader: bytes.NewReader(content), Size: int64(len(content)), ContentType: "application/pdf"}
	publicURL, err := store.Store(context.Background(), file, "requisitos", "e1_req_0.pdf")
	require.NoError(t, err)

	parsed, err := url.Parse(publicURL)
	require.NoError(t, err)
	token := path.Base(parsed.Path)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/files/"+token, nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: token}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, content, w.Body.Bytes())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestFileHandlerDownloadRejectsInvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, _ := newFileHandlerFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/files/garbage", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "garbage"}}

	handler.Download(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFileHandlerDownloadMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, signer := newFileHandlerFixture(t)

	token, _, err := signer.Generate("requisitos/missing.pdf")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/files/"+token, nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: token}}

	handler.Download(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
