package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore keeps documents on disk under a base directory and hands out
// signed download URLs served by the /files endpoint. Meant for development
// and single-node deployments.
type LocalStore struct {
	baseDir       string
	publicBaseURL string
	signer        *SignedURLSigner
}

// NewLocalStore ensures the base directory exists and returns a store.
func NewLocalStore(baseDir, publicBaseURL string, signer *SignedURLSigner) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStore{
		baseDir:       baseDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		signer:        signer,
	}, nil
}

// Store writes the file under folder/name and returns a signed public URL.
func (s *LocalStore) Store(_ context.Context, file File, folder, name string) (string, error) {
	relPath := path.Join(folder, name)
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("prepare upload directory: %w", err)
	}
	out, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer out.Close() //nolint:errcheck
	if _, err := io.Copy(out, file.Reader); err != nil {
		return "", fmt.Errorf("write upload stream: %w", err)
	}

	// The URL is persisted as document_url, so it must not expire. The
	// download endpoint still verifies the HMAC.
	token, err := s.signer.GenerateDurable(relPath)
	if err != nil {
		return "", fmt.Errorf("sign upload url: %w", err)
	}
	return s.publicBaseURL + "/" + token, nil
}

// Delete removes the file referenced by a previously issued URL, best effort.
func (s *LocalStore) Delete(_ context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	token := path.Base(parsed.Path)
	relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return false
	}
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(relPath))
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return false
	}
	return true
}

// Open returns a read-only handle for a stored file path.
func (s *LocalStore) Open(relPath string) (*os.File, error) {
	file, err := os.Open(filepath.Join(s.baseDir, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	return file, nil
}
