package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/logger"
)

// MaxImageSize bounds a decoded recipe image.
const MaxImageSize = 5 << 20

var (
	ErrImageNotDataURL   = errors.New("image must be a base64 data URL")
	ErrImageEncoding     = errors.New("image payload is not valid base64")
	ErrImageUnsupported  = errors.New("image must be a PNG, JPEG, GIF or WebP file")
	ErrImageTooLarge     = errors.New("image exceeds the 5 MB limit")
	errImageStoreMissing = errors.New("no image store configured")
)

var imageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Image is a decoded upload.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
}

// DecodeImage parses a data:image/<type>;base64,<payload> string. The
// declared type is ignored in favour of the sniffed one.
func DecodeImage(dataURL string) (*Image, error) {
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return nil, ErrImageNotDataURL
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, ErrImageEncoding
	}
	if len(data) == 0 {
		return nil, ErrImageEncoding
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, ErrImageUnsupported
	}
	return &Image{Data: data, ContentType: contentType, Ext: ext}, nil
}

// ImageStore persists recipe images and returns the URL clients load them from.
type ImageStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// S3ImageStore stores images in the configured bucket.
type S3ImageStore struct {
	s3Config *config.S3Config
}

func NewS3ImageStore(s3Config *config.S3Config) *S3ImageStore {
	return &S3ImageStore{s3Config: s3Config}
}

func (s *S3ImageStore) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return s.s3Config.PutObject(ctx, key, data, contentType)
}

func (s *S3ImageStore) Delete(ctx context.Context, key string) error {
	return s.s3Config.DeleteObject(ctx, key)
}

// LocalImageStore writes images below a media directory served at baseURL.
type LocalImageStore struct {
	dir     string
	baseURL string
}

func NewLocalImageStore(dir, baseURL string) *LocalImageStore {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &LocalImageStore{dir: dir, baseURL: baseURL}
}

func (s *LocalImageStore) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image %s: %w", key, err)
	}
	return s.baseURL + key, nil
}

// Delete removes key. A missing file is not an error.
func (s *LocalImageStore) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove image %s: %w", key, err)
	}
	return nil
}

// storedImage is an image written ahead of the database transaction that
// references it.
type storedImage struct {
	key string
	url string
}

// storeRecipeImage saves img under a fresh recipes/<uuid>.<ext> key.
func storeRecipeImage(ctx context.Context, store ImageStore, img *Image) (*storedImage, error) {
	if store == nil {
		return nil, errImageStoreMissing
	}
	key := fmt.Sprintf("recipes/%s.%s", uuid.NewString(), img.Ext)
	url, err := store.Save(ctx, key, img.Data, img.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store recipe image: %w", err)
	}
	return &storedImage{key: key, url: url}, nil
}

// discardRecipeImage removes an image whose recipe write was rolled back.
func discardRecipeImage(ctx context.Context, store ImageStore, img *storedImage) {
	if img == nil {
		return
	}
	if err := store.Delete(context.WithoutCancel(ctx), img.key); err != nil {
		logger.Warn("failed to discard orphaned recipe image", "key", img.key, "error", err)
	}
}
