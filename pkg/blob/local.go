package blob

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// LocalStore keeps blobs on the local filesystem under a root directory. The
// server exposes the root as static content, so URLs are baseURL + key.
// Content types are derived from file extensions at serve time.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create blob directory: %s", root)
	}
	return &LocalStore{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *LocalStore) Upload(_ context.Context, localPath, key, _ string) (string, error) {
	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", errors.WithStack(err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", errors.WithStack(err)
	}
	if err := out.Close(); err != nil {
		return "", errors.WithStack(err)
	}

	return s.baseURL + "/" + key, nil
}

func (s *LocalStore) List(_ context.Context, prefix string) ([]Object, error) {
	dir := filepath.Join(s.root, filepath.FromSlash(prefix))
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var objects []Object
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return errors.WithStack(err)
		}
		key := filepath.ToSlash(rel)
		objects = append(objects, Object{Key: key, URL: s.baseURL + "/" + key})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return objects, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.WithStack(err)
	}
	return nil
}

func (s *LocalStore) BaseURL() string {
	return s.baseURL
}

// Root is the directory the server should expose as static content.
func (s *LocalStore) Root() string {
	return s.root
}
