package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// ossBucket is the subset of *oss.Bucket the store uses.
type ossBucket interface {
	PutObject(objectKey string, reader io.Reader, options ...oss.Option) error
	GetObject(objectKey string, options ...oss.Option) (io.ReadCloser, error)
	IsObjectExist(objectKey string, options ...oss.Option) (bool, error)
}

// OSSStore keeps blobs in an Aliyun OSS bucket under <prefix><owner>/<filename>.
type OSSStore struct {
	bucket ossBucket
	prefix string
}

// NewOSSStore connects to the bucket described by cfg.
// Endpoint: oss-cn-hangzhou.aliyuncs.com
func NewOSSStore(cfg OSSConfig) (*OSSStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("oss storage requires endpoint and bucket")
	}
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", cfg.Bucket, err)
	}
	return newOSSStore(bucket, cfg.Prefix), nil
}

func newOSSStore(bucket ossBucket, prefix string) *OSSStore {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &OSSStore{bucket: bucket, prefix: prefix}
}

func (s *OSSStore) objectKey(owner int64, filename string) (string, error) {
	name, err := cleanName(filename)
	if err != nil {
		return "", err
	}
	return s.prefix + strconv.FormatInt(owner, 10) + "/" + name, nil
}

func (s *OSSStore) Write(ctx context.Context, owner int64, filename string, data []byte) error {
	key, err := s.objectKey(owner, filename)
	if err != nil {
		return err
	}
	opts := []oss.Option{oss.WithContext(ctx)}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		opts = append(opts, oss.ContentType(ct))
	}
	if err := s.bucket.PutObject(key, bytes.NewReader(data), opts...); err != nil {
		return fmt.Errorf("failed to upload to OSS: %w", err)
	}
	return nil
}

func (s *OSSStore) Read(ctx context.Context, owner int64, filename string) ([]byte, error) {
	key, err := s.objectKey(owner, filename)
	if err != nil {
		return nil, err
	}
	body, err := s.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		var svcErr oss.ServiceError
		if errors.As(err, &svcErr) && svcErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", filename, ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read from OSS: %w", err)
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (s *OSSStore) Exists(ctx context.Context, owner int64, filename string) (bool, error) {
	key, err := s.objectKey(owner, filename)
	if err != nil {
		return false, err
	}
	return s.bucket.IsObjectExist(key, oss.WithContext(ctx))
}

func (s *OSSStore) Name() string {
	return "oss"
}
