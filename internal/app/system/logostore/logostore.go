// Package logostore keeps group logo images on the local filesystem or in
// S3 and hands back the public URL stored on the group.
package logostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotImage is returned by Upload for non-image content types.
var ErrNotImage = errors.New("logo must be an image file")

// Store is a blob store addressed by slash-separated keys.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL is the public URL of key.
	URL(key string) string
	// Key reverses URL. ok is false for URLs this store did not produce.
	Key(url string) (key string, ok bool)
}

// Upload stores a logo under logos/YYYY/MM/<uuid><ext>, keeping the
// extension exactly as uploaded, and returns its public URL.
func Upload(ctx context.Context, s Store, filename string, r io.Reader, contentType string) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrNotImage
	}

	now := time.Now().UTC()
	key := path.Join(
		fmt.Sprintf("logos/%04d/%02d", now.Year(), now.Month()),
		uuid.New().String()+filepath.Ext(filename),
	)

	if err := s.Put(ctx, key, r, contentType); err != nil {
		return "", fmt.Errorf("failed to upload logo: %w", err)
	}
	return s.URL(key), nil
}

// Remove deletes the blob behind a previously returned URL. URLs from
// elsewhere (or empty) are ignored.
func Remove(ctx context.Context, s Store, url string) error {
	if url == "" {
		return nil
	}
	key, ok := s.Key(url)
	if !ok {
		return nil
	}
	return s.Delete(ctx, key)
}

// cleanKey rejects keys that would escape the store's root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + key)[1:]
	if k == "" || k != strings.TrimPrefix(key, "/") || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return k, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

func trimURL(base, url string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	k, err := cleanKey(strings.TrimPrefix(url, prefix))
	if err != nil {
		return "", false
	}
	return k, true
}
