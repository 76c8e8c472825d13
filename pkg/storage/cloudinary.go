package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStore hosts documents on Cloudinary. PDFs are stored as raw
// resources, everything else as images.
type CloudinaryStore struct {
	cld        *cloudinary.Cloudinary
	rootFolder string
}

// NewCloudinaryStore builds a store from a CLOUDINARY_URL style DSN.
func NewCloudinaryStore(cloudinaryURL, rootFolder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true
	return &CloudinaryStore{cld: cld, rootFolder: strings.Trim(rootFolder, "/")}, nil
}

// Store uploads the file and returns its secure URL.
func (s *CloudinaryStore) Store(ctx context.Context, file File, folder, name string) (string, error) {
	resource := ResourceImage
	if file.ContentType == "application/pdf" {
		resource = ResourceRaw
	}
	fullFolder := folder
	if s.rootFolder != "" {
		fullFolder = s.rootFolder + "/" + folder
	}
	result, err := s.cld.Upload.Upload(ctx, file.Reader, uploader.UploadParams{
		Folder:       fullFolder,
		PublicID:     name,
		ResourceType: resource,
		Overwrite:    api.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	return result.SecureURL, nil
}

// Delete destroys the resource referenced by the URL, best effort.
func (s *CloudinaryStore) Delete(ctx context.Context, rawURL string) bool {
	publicID, resource, ok := parseCloudinaryURL(rawURL)
	if !ok {
		return false
	}
	result, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resource,
	})
	if err != nil {
		return false
	}
	return result.Result == "ok"
}

// parseCloudinaryURL extracts the public ID and resource type from a
// delivery URL such as
// https://res.cloudinary.com/cloud/image/upload/v123/folder/name.png.
func parseCloudinaryURL(rawURL string) (publicID, resource string, ok bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	// cloud / resource_type / delivery_type / [version] / public_id...
	if len(parts) < 4 || parts[2] != "upload" {
		return "", "", false
	}
	resource = parts[1]
	rest := parts[3:]
	if len(rest) > 0 && len(rest[0]) > 1 && rest[0][0] == 'v' && isDigits(rest[0][1:]) {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return "", "", false
	}
	publicID = strings.Join(rest, "/")
	if resource == ResourceImage {
		publicID = strings.TrimSuffix(publicID, path.Ext(publicID))
	}
	return publicID, resource, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
