package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

// ErrNoSession is returned by Store.Load when nothing has been persisted.
var ErrNoSession = errors.New("no persisted session")

const handleKey = "session/current"

// Store persists the single active handle across restarts. Nothing but the
// identifier is stored.
type Store interface {
	Load(ctx context.Context) (Handle, error)
	Save(ctx context.Context, handle Handle) error
}

type BlobStore struct {
	bucket *blob.Bucket
}

// NewBlobStore wraps an already opened bucket.
func NewBlobStore(bucket *blob.Bucket) *BlobStore {
	return &BlobStore{bucket: bucket}
}

// OpenFileStore opens a filesystem-backed store rooted at dir.
func OpenFileStore(dir string) (*BlobStore, error) {
	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{
		CreateDir: true,
		NoTempDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open session bucket: %w", err)
	}
	return NewBlobStore(bucket), nil
}

func (s *BlobStore) Load(ctx context.Context) (Handle, error) {
	data, err := s.bucket.ReadAll(ctx, handleKey)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("read session handle: %w", err)
	}
	handle := strings.TrimSpace(string(data))
	if handle == "" {
		return "", ErrNoSession
	}
	return Handle(handle), nil
}

func (s *BlobStore) Save(ctx context.Context, handle Handle) error {
	if err := s.bucket.WriteAll(ctx, handleKey, []byte(handle), &blob.WriterOptions{
		ContentType: "text/plain; charset=utf-8",
	}); err != nil {
		return fmt.Errorf("write session handle: %w", err)
	}
	return nil
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
