package storage

import (
	"context"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/uagrm-posgrado/admin-api/pkg/errors"
)

var testLimits = Limits{MaxImageBytes: 5 * 1024 * 1024, MaxPDFBytes: 10 * 1024 * 1024}

func TestClassifyPDF(t *testing.T) {
	resource, ext, err := Classify("application/pdf", 1024, testLimits)
	require.NoError(t, err)
	assert.Equal(t, ResourceRaw, resource)
	assert.Equal(t, ".pdf", ext)
}

func TestClassifyImage(t *testing.T) {
	resource, ext, err := Classify("image/webp", 1024, testLimits)
	require.NoError(t, err)
	assert.Equal(t, ResourceImage, resource)
	assert.Equal(t, ".webp", ext)
}

func TestClassifyRejectsOversizedPDF(t *testing.T) {
	_, _, err := Classify("application/pdf", testLimits.MaxPDFBytes+1, testLimits)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFileTooLarge.Code, appErrors.FromError(err).Code)
}

func TestClassifyRejectsOversizedImage(t *testing.T) {
	_, _, err := Classify("image/png", testLimits.MaxImageBytes+1, testLimits)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFileTooLarge.Code, appErrors.FromError(err).Code)
}

func TestClassifyRejectsUnknownType(t *testing.T) {
	_, _, err := Classify("application/zip", 10, testLimits)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnsupportedMedia.Code, appErrors.FromError(err).Code)
}

func TestClassifyImageRejectsPDF(t *testing.T) {
	_, err := ClassifyImage("application/pdf", 10, testLimits)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnsupportedMedia.Code, appErrors.FromError(err).Code)
}

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, expiresAt, err := signer.Generate("requisitos/enr-1/0.pdf")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	relPath, _, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "requisitos/enr-1/0.pdf", relPath)
}

func TestSignedURLExpiredTokenRejected(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, err := signer.sign("requisitos/enr-1/0.pdf", time.Now().Add(-time.Minute).Unix())
	require.NoError(t, err)

	_, _, err = signer.Parse(token)
	assert.Error(t, err)
}

func TestSignedURLDurableTokenNeverExpires(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, err := signer.GenerateDurable("requisitos/enr-1/0.pdf")
	require.NoError(t, err)

	relPath, expiresAt, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "requisitos/enr-1/0.pdf", relPath)
	assert.True(t, expiresAt.IsZero())

	other := NewSignedURLSigner("other-secret", time.Minute)
	_, _, err = other.Parse(token)
	assert.Error(t, err)
}

func TestLocalStoreURLStaysValid(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8080/files", signer)
	require.NoError(t, err)

	url, err := store.Store(context.Background(), File{Reader: strings.NewReader("%PDF-1.4"), Size: 8, ContentType: "application/pdf"}, "requisitos", "enr-1_req_0")
	require.NoError(t, err)

	token := path.Base(url)
	relPath, expiresAt, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "requisitos/enr-1_req_0", relPath)
	assert.True(t, expiresAt.IsZero())
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate("requisitos/enr-1/0.pdf")
	require.NoError(t, err)

	_, _, err = signer.Parse(token + "x")
	assert.Error(t, err)

	other := NewSignedURLSigner("other-secret", time.Minute)
	_, _, err = other.Parse(token)
	assert.Error(t, err)
}

func TestParseCloudinaryURL(t *testing.T) {
	publicID, resource, ok := parseCloudinaryURL("https://res.cloudinary.com/demo/image/upload/v1712345/posgrado/qr/config.png")
	require.True(t, ok)
	assert.Equal(t, ResourceImage, resource)
	assert.Equal(t, "posgrado/qr/config", publicID)

	publicID, resource, ok = parseCloudinaryURL("https://res.cloudinary.com/demo/raw/upload/v1712345/posgrado/requisitos/enr-1/0.pdf")
	require.True(t, ok)
	assert.Equal(t, ResourceRaw, resource)
	assert.Equal(t, "posgrado/requisitos/enr-1/0.pdf", publicID)

	_, _, ok = parseCloudinaryURL("https://example.com/not/cloudinary")
	assert.False(t, ok)
}
