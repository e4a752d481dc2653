package blob

import (
	"context"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
)

// GCSStore keeps blobs in a Google Cloud Storage bucket. Objects are served
// from the public bucket URL unless a base URL override is given (e.g. a CDN
// in front of the bucket).
type GCSStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewGCSStore(ctx context.Context, bucket, baseURL string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create storage client")
	}
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStore{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (s *GCSStore) Upload(ctx context.Context, localPath, key, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer f.Close()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return "", errors.Wrapf(err, "failed to write %s", key)
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrapf(err, "failed to finalize %s", key)
	}

	return s.baseURL + "/" + key, nil
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list %s", prefix)
		}
		objects = append(objects, Object{Key: attrs.Name, URL: s.baseURL + "/" + attrs.Name})
	}

	return objects, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return errors.Wrapf(err, "failed to delete %s", key)
	}
	return nil
}

func (s *GCSStore) BaseURL() string {
	return s.baseURL
}
