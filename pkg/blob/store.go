// Package blob abstracts the static host that serves generated IIIF tiles.
// The tiling and manifest pipelines depend only on this narrow contract, not
// on any specific storage provider.
package blob

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Object is one stored blob.
type Object struct {
	Key string
	URL string
}

// Store is a key-addressed blob host. Keys are slash-separated paths; URLs
// are public and stable.
type Store interface {
	// Upload copies a local file to the given key and returns its public URL.
	Upload(ctx context.Context, localPath, key, contentType string) (string, error)
	// List returns every object under the given key prefix.
	List(ctx context.Context, prefix string) ([]Object, error)
	// Delete removes one object by key.
	Delete(ctx context.Context, key string) error
	// BaseURL is the public URL prefix all keys are served under.
	BaseURL() string
}

var contentTypes = map[string]string{
	".json": "application/ld+json",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// ContentTypeFor maps a file path to the content type it must be served
// with. Unknown extensions fall back to application/octet-stream.
func ContentTypeFor(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// UploadDirectory walks localDir and uploads every file under it to
// {prefix}/{relative path}, preserving per-extension content types. It
// returns the public URLs of everything uploaded.
func UploadDirectory(ctx context.Context, store Store, localDir, prefix string) ([]string, error) {
	var urls []string

	err := filepath.WalkDir(localDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return errors.WithStack(err)
		}
		key := prefix + "/" + filepath.ToSlash(rel)

		url, err := store.Upload(ctx, path, key, ContentTypeFor(path))
		if err != nil {
			return errors.Wrapf(err, "failed to upload %s", key)
		}
		urls = append(urls, url)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return urls, nil
}

// DeletePrefix removes every object under the given prefix.
func DeletePrefix(ctx context.Context, store Store, prefix string) error {
	objects, err := store.List(ctx, prefix)
	if err != nil {
		return errors.Wrapf(err, "failed to list %s", prefix)
	}
	for _, obj := range objects {
		if err := store.Delete(ctx, obj.Key); err != nil {
			return errors.Wrapf(err, "failed to delete %s", obj.Key)
		}
	}
	return nil
}
