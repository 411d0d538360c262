package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/hyperjump/reposync/internal/models"
)

// attrsMetaKey holds base64 JSON attributes, since header values cannot carry arbitrary paths.
const attrsMetaKey = "Reposync-Attrs"

// S3Config configures an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type objectInfo struct {
	Key  string
	Size int64
}

// objectClient is the subset of bucket operations S3Store needs.
type objectClient interface {
	put(ctx context.Context, key string, data []byte, meta map[string]string) error
	remove(ctx context.Context, key string) error
	list(ctx context.Context, prefix string) ([]objectInfo, error)
	stat(ctx context.Context, key string) (map[string]string, error)
	get(ctx context.Context, key string) ([]byte, error)
}

// S3Store keeps documents as objects "<prefix>/<id>" with attributes in user metadata.
// Creating a document removes any other document carrying the same "path" attribute.
type S3Store struct {
	client objectClient
	prefix string
	logger *zap.Logger
}

// NewS3Store connects to the bucket, creating it if needed.
func NewS3Store(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return newS3Store(&minioClient{cli: cli, bucket: cfg.Bucket}, cfg.Prefix, logger), nil
}

func newS3Store(client objectClient, prefix string, logger *zap.Logger) *S3Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Store{
		client: client,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

func (s *S3Store) key(id string) string {
	if s.prefix == "" {
		return id
	}
	return path.Join(s.prefix, id)
}

func (s *S3Store) listPrefix() string {
	if s.prefix == "" {
		return ""
	}
	return s.prefix + "/"
}

// CreateOrReplace uploads the object, then deletes other objects with the same path.
func (s *S3Store) CreateOrReplace(ctx context.Context, id string, content []byte, attrs models.Attributes) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	encoded, err := encodeAttrs(attrs)
	if err != nil {
		return "", err
	}
	if err := s.client.put(ctx, s.key(id), content, map[string]string{attrsMetaKey: encoded}); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", id, err)
	}

	if p := attrs.Path(); p != "" {
		files, err := s.List(ctx)
		if err != nil {
			return "", err
		}
		for _, f := range files {
			if f.ID == id || f.Attributes.Path() != p {
				continue
			}
			s.logger.Debug("removing superseded object", zap.String("id", f.ID), zap.String("path", p))
			if err := s.Delete(ctx, f.ID); err != nil {
				return "", err
			}
		}
	}
	return id, nil
}

// Delete removes the object. Removing a missing object is not an error.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	if err := s.client.remove(ctx, s.key(id)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	return nil
}

// List returns every object under the prefix, ordered by ID.
func (s *S3Store) List(ctx context.Context) ([]models.DocumentSummary, error) {
	objects, err := s.client.list(ctx, s.listPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	out := make([]models.DocumentSummary, 0, len(objects))
	for _, obj := range objects {
		id := strings.TrimPrefix(obj.Key, s.listPrefix())
		if id == "" || strings.Contains(id, "/") {
			continue
		}
		meta, err := s.client.stat(ctx, obj.Key)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("failed to stat %s: %w", id, err)
		}
		out = append(out, models.DocumentSummary{
			ID:         id,
			SizeBytes:  obj.Size,
			Attributes: decodeAttrs(meta),
			Status:     StatusCompleted,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Read downloads an object, or returns ErrNotFound.
func (s *S3Store) Read(ctx context.Context, id string) (*models.Document, error) {
	meta, err := s.client.stat(ctx, s.key(id))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", id, err)
	}
	data, err := s.client.get(ctx, s.key(id))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to download %s: %w", id, err)
	}
	return &models.Document{ID: id, Content: data, Attributes: decodeAttrs(meta)}, nil
}

// FindByAttributes returns the lowest ID whose attributes contain attrs.
func (s *S3Store) FindByAttributes(ctx context.Context, attrs models.Attributes) (string, bool, error) {
	files, err := s.List(ctx)
	if err != nil {
		return "", false, err
	}
	for _, f := range files {
		if f.Attributes.Matches(attrs) {
			return f.ID, true, nil
		}
	}
	return "", false, nil
}

// Close implements Store.
func (s *S3Store) Close() error { return nil }

func encodeAttrs(attrs models.Attributes) (string, error) {
	if attrs == nil {
		attrs = models.Attributes{}
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal attributes: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func decodeAttrs(meta map[string]string) models.Attributes {
	for k, v := range meta {
		if !strings.EqualFold(k, attrsMetaKey) {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return models.Attributes{}
		}
		var attrs models.Attributes
		if err := json.Unmarshal(raw, &attrs); err != nil {
			return models.Attributes{}
		}
		return attrs
	}
	return models.Attributes{}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

type minioClient struct {
	cli    *minio.Client
	bucket string
}

func (m *minioClient) put(ctx context.Context, key string, data []byte, meta map[string]string) error {
	_, err := m.cli.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  "application/octet-stream",
			UserMetadata: meta,
		})
	return err
}

func (m *minioClient) remove(ctx context.Context, key string) error {
	return m.cli.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

func (m *minioClient) list(ctx context.Context, prefix string) ([]objectInfo, error) {
	var out []objectInfo
	for obj := range m.cli.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, objectInfo{Key: obj.Key, Size: obj.Size})
	}
	return out, nil
}

func (m *minioClient) stat(ctx context.Context, key string) (map[string]string, error) {
	info, err := m.cli.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, translateMinioErr(err)
	}
	return info.UserMetadata, nil
}

func (m *minioClient) get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.cli.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateMinioErr(err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateMinioErr(err)
	}
	return data, nil
}

func translateMinioErr(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return err
}
