package storage

import (
	"bytes"
	"context"

	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss/credentials"
	"github.com/pkg/errors"
)

// OSSConfig holds Aliyun OSS settings.
type OSSConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	AccessKeySecret string
	// PublicBaseURL is the CDN or bucket domain objects are served from.
	PublicBaseURL string
}

// OSSImageStore stores images in an Aliyun OSS bucket.
type OSSImageStore struct {
	client  *oss.Client
	bucket  string
	baseURL string
}

var _ ImageStore = (*OSSImageStore)(nil)

// NewOSSImageStore builds a client with static credentials. When no access key
// is configured the OSS_ACCESS_KEY_ID / OSS_ACCESS_KEY_SECRET environment
// variables are used instead.
func NewOSSImageStore(cfg OSSConfig) (*OSSImageStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("oss: bucket is required")
	}

	var provider credentials.CredentialsProvider
	if cfg.AccessKeyID != "" {
		provider = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret)
	} else {
		provider = credentials.NewEnvironmentVariableCredentialsProvider()
	}

	ossCfg := oss.LoadDefaultConfig().
		WithRegion(cfg.Region).
		WithCredentialsProvider(provider)
	if cfg.Endpoint != "" {
		ossCfg = ossCfg.WithEndpoint(cfg.Endpoint)
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = "https://" + cfg.Bucket + "." + cfg.Endpoint
	}

	return &OSSImageStore{
		client:  oss.NewClient(ossCfg),
		bucket:  cfg.Bucket,
		baseURL: baseURL,
	}, nil
}

// Put uploads the image and returns its public URL.
func (s *OSSImageStore) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	req := &oss.PutObjectRequest{
		Bucket: oss.Ptr(s.bucket),
		Key:    oss.Ptr(key),
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		req.ContentType = oss.Ptr(contentType)
	}
	if _, err := s.client.PutObject(ctx, req); err != nil {
		return "", errors.Wrapf(err, "oss put %s", key)
	}
	return joinURL(s.baseURL, key), nil
}

// Delete removes an uploaded image.
func (s *OSSImageStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &oss.DeleteObjectRequest{
		Bucket: oss.Ptr(s.bucket),
		Key:    oss.Ptr(key),
	})
	return errors.Wrapf(err, "oss delete %s", key)
}
