// Package media uploads product photos to the object storage backing the
// public catalog. Payloads arrive base64-encoded from the messaging gateway
// and are stored under a deterministic per-product path, so re-uploads
// overwrite instead of piling up.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBucket is used when no bucket is configured.
const DefaultBucket = "produtos"

// ErrMissingConfig is returned by NewStorage when URL or key is empty.
var ErrMissingConfig = errors.New("media: storage url and service key are required")

// StorageConfig configures the object storage client. Bucket and HTTPClient
// are optional.
type StorageConfig struct {
	BaseURL    string
	ServiceKey string
	Bucket     string
	HTTPClient *http.Client
}

// Storage uploads objects through the storage REST API.
type Storage struct {
	baseURL string
	key     string
	bucket  string
	httpc   *http.Client
}

// NewStorage validates the config and builds a storage client.
func NewStorage(cfg StorageConfig) (*Storage, error) {
	if cfg.BaseURL == "" || cfg.ServiceKey == "" {
		return nil, ErrMissingConfig
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Storage{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.ServiceKey,
		bucket:  bucket,
		httpc:   httpc,
	}, nil
}

// NormalizeBase64 strips a data-URI prefix ("data:image/png;base64,...")
// when present, returning the bare payload.
func NormalizeBase64(raw string) string {
	if i := strings.LastIndex(raw, ","); i >= 0 {
		return raw[i+1:]
	}
	return raw
}

var mimeExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// ExtensionFromMime maps a mimetype to a file extension, "bin" when unknown.
func ExtensionFromMime(mimetype string) string {
	if ext, ok := mimeExtensions[mimetype]; ok {
		return ext
	}
	return "bin"
}

// ProductPhotoPath is the canonical storage path of a product's main photo.
func ProductPhotoPath(productID, mimetype string) string {
	return fmt.Sprintf("produtos/%s/principal.%s", productID, ExtensionFromMime(mimetype))
}

// Upload stores a base64 payload at path and returns its public URL. The
// upsert header makes the call idempotent for a fixed path.
func (s *Storage) Upload(ctx context.Context, path, b64, mimetype string) (string, error) {
	clean := NormalizeBase64(b64)
	if clean == "" || path == "" {
		return "", errors.New("media: path and payload are required")
	}
	data, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return "", fmt.Errorf("media: decode payload: %w", err)
	}
	if mimetype == "" {
		mimetype = "application/octet-stream"
	}

	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, url.PathEscape(s.bucket), path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("apikey", s.key)
	req.Header.Set("Content-Type", mimetype)
	req.Header.Set("x-upsert", "true")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("media: upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("media: upload returned status %d", resp.StatusCode)
	}
	io.Copy(io.Discard, resp.Body)

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, url.PathEscape(s.bucket), path), nil
}
