package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kurin/blazer/b2"

	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// B2Config holds Backblaze B2 credentials and the target bucket.
type B2Config struct {
	AccountID      string
	ApplicationKey string
	Bucket         string
	// Prefix is prepended to every object key, e.g. "assets".
	Prefix string
}

// objects is the part of a bucket the store needs.
type objects interface {
	put(ctx context.Context, key string, content []byte) error
	get(ctx context.Context, key string) ([]byte, error)
	remove(ctx context.Context, key string) error
	name() string
}

// B2 stores files as objects in a B2 bucket. Stored paths have the form
// b2://<bucket>/<key>.
type B2 struct {
	objects objects
	prefix  string
}

// NewB2 authorizes against B2 and opens the bucket.
func NewB2(ctx context.Context, cfg B2Config) (*B2, error) {
	if cfg.AccountID == "" || cfg.ApplicationKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("filestore: b2 account, key and bucket are required")
	}
	client, err := b2.NewClient(ctx, cfg.AccountID, cfg.ApplicationKey)
	if err != nil {
		return nil, fmt.Errorf("filestore: create b2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("filestore: open bucket %s: %w", cfg.Bucket, err)
	}
	return newB2(b2Bucket{bucket: bucket}, cfg.Prefix), nil
}

func newB2(objs objects, prefix string) *B2 {
	return &B2{objects: objs, prefix: strings.Trim(prefix, "/")}
}

// Save uploads content under name and returns the stored path.
func (s *B2) Save(ctx context.Context, name string, content []byte) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	key := clean
	if s.prefix != "" {
		key = s.prefix + "/" + clean
	}
	if err := s.objects.put(ctx, key, content); err != nil {
		return "", shared.StorageFailure("file", "Save", err)
	}
	return s.scheme() + key, nil
}

// Open downloads a stored object.
func (s *B2) Open(ctx context.Context, path string) ([]byte, error) {
	key, err := s.key(path)
	if err != nil {
		return nil, err
	}
	data, err := s.objects.get(ctx, key)
	if b2.IsNotExist(err) {
		return nil, shared.NotFound("file", "Open", key)
	}
	if err != nil {
		return nil, shared.StorageFailure("file", "Open", err)
	}
	return data, nil
}

// Remove deletes a stored object. Missing objects are not an error.
func (s *B2) Remove(ctx context.Context, path string) error {
	key, err := s.key(path)
	if err != nil {
		return err
	}
	if err := s.objects.remove(ctx, key); err != nil && !b2.IsNotExist(err) {
		return shared.StorageFailure("file", "Remove", err)
	}
	return nil
}

func (s *B2) scheme() string {
	return "b2://" + s.objects.name() + "/"
}

func (s *B2) key(path string) (string, error) {
	key, ok := strings.CutPrefix(path, s.scheme())
	if !ok || key == "" || (s.prefix != "" && !strings.HasPrefix(key, s.prefix+"/")) {
		return "", shared.NewValidationError("file", "Open", "path outside of storage bucket", "path")
	}
	return key, nil
}

// b2Bucket adapts a blazer bucket.
type b2Bucket struct {
	bucket *b2.Bucket
}

func (b b2Bucket) name() string { return b.bucket.Name() }

func (b b2Bucket) put(ctx context.Context, key string, content []byte) error {
	w := b.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(content)); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

func (b b2Bucket) get(ctx context.Context, key string) ([]byte, error) {
	r := b.bucket.Object(key).NewReader(ctx)
	defer r.Close()
	return io.ReadAll(r)
}

func (b b2Bucket) remove(ctx context.Context, key string) error {
	return b.bucket.Object(key).Delete(ctx)
}
