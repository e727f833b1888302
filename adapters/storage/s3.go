package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	Meta         map[string]string
}

// ObjectClient is the minimal object-store surface used by the backend.
// AWSClient implements it with aws-sdk-go-v2; tests inject a fake.
type ObjectClient interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string, meta map[string]string) error
	HeadObject(ctx context.Context, key string) (ObjectInfo, bool, error)
	DeleteObject(ctx context.Context, key string) error
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ObjectStorage is the S3 / R2 destination backend.
type ObjectStorage struct {
	client ObjectClient
}

// NewObjectStorage creates the backend. client must not be nil.
func NewObjectStorage(client ObjectClient) (*ObjectStorage, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 storage: client must not be nil")
	}
	return &ObjectStorage{client: client}, nil
}

func (s *ObjectStorage) Kind() core.BackendKind { return core.BackendS3 }

// ObjectKey composes dir/file without a leading slash.
func ObjectKey(dir, file string) string {
	return strings.TrimPrefix(path.Join("/", dir, file), "/")
}

func (s *ObjectStorage) fail(op string, d core.StorageDescriptor, err error) error {
	return &apperrors.BackendError{
		Backend: string(core.BackendS3), Dir: d.Dir, File: d.File, Op: op, Err: err, Retryable: true,
	}
}

// Save uploads data under dir/file with the descriptor's content type and
// metadata.
func (s *ObjectStorage) Save(ctx context.Context, d core.StorageDescriptor, data []byte) (core.SaveOutcome, error) {
	if err := ctx.Err(); err != nil {
		return core.SaveOutcome{}, s.fail("put", d, err)
	}
	key := ObjectKey(d.Dir, d.File)
	if err := s.client.PutObject(ctx, key, data, d.ContentType, d.Meta); err != nil {
		return core.SaveOutcome{}, s.fail("put", d, err)
	}
	return core.SaveOutcome{
		Status: core.StatusOK,
		Kind:   core.BackendS3,
		Dir:    d.Dir,
		File:   d.File,
		Bytes:  len(data),
		Result: key,
	}, nil
}

// Delete removes the object at dir/file.
func (s *ObjectStorage) Delete(ctx context.Context, d core.StorageDescriptor) error {
	if err := ctx.Err(); err != nil {
		return s.fail("delete", d, err)
	}
	if err := s.client.DeleteObject(ctx, ObjectKey(d.Dir, d.File)); err != nil {
		return s.fail("delete", d, err)
	}
	return nil
}

// Exists reports whether the object at dir/file is present.
func (s *ObjectStorage) Exists(ctx context.Context, d core.StorageDescriptor) (bool, error) {
	_, ok, err := s.client.HeadObject(ctx, ObjectKey(d.Dir, d.File))
	if err != nil {
		return false, s.fail("head", d, err)
	}
	return ok, nil
}

// List returns the objects stored under dir.
func (s *ObjectStorage) List(ctx context.Context, dir string) ([]ObjectInfo, error) {
	prefix := ObjectKey(dir, "")
	if prefix != "" {
		prefix += "/"
	}
	objs, err := s.client.ListObjects(ctx, prefix)
	if err != nil {
		return nil, s.fail("list", core.StorageDescriptor{Dir: dir}, err)
	}
	return objs, nil
}

var _ core.Backend = (*ObjectStorage)(nil)
