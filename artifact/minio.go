// Copyright 2025 The Mealdex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mealdex/mealdex/core"
)

// S3Config configures the minio-backed object store. It works against both
// MinIO and S3-compatible endpoints.
type S3Config struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	UseSSL          bool
	CallTimeout     time.Duration
}

// S3Store implements ObjectStore using the minio-go SDK.
type S3Store struct {
	client *minio.Client
	cfg    S3Config
}

var _ ObjectStore = (*S3Store)(nil)

// NewS3Store creates an object store client from config.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.EndpointURL == "" {
		return nil, fmt.Errorf("s3 store: endpoint URL is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("s3 store: credentials are required")
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}

	u, err := url.Parse(cfg.EndpointURL)
	if err != nil {
		return nil, fmt.Errorf("s3 store: invalid endpoint URL: %w", err)
	}
	endpoint := u.Host
	if endpoint == "" {
		endpoint = cfg.EndpointURL
	}
	useSSL := cfg.UseSSL || u.Scheme == "https"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 store: create client: %w", err)
	}

	return &S3Store{client: client, cfg: cfg}, nil
}

// Put writes data under key with the given content type.
func (s *S3Store) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if bucket == "" || key == "" {
		return core.NewItemError(core.KindPermanent, "put object", fmt.Errorf("bucket and key are required"))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return classifyStoreError("put object", err)
	}
	return nil
}

// Get reads the object stored under key.
func (s *S3Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if bucket == "" || key == "" {
		return nil, core.NewItemError(core.KindPermanent, "get object", fmt.Errorf("bucket and key are required"))
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyStoreError("get object", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyStoreError("get object", err)
	}
	return data, nil
}

// EnsureBucket creates the bucket if it does not already exist.
func (s *S3Store) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return classifyStoreError("ensure bucket", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
		return classifyStoreError("ensure bucket", err)
	}
	return nil
}

// classifyStoreError converts minio-go errors into classified item errors.
func classifyStoreError(op string, err error) *core.ItemError {
	if err == nil {
		return nil
	}

	if minioErr, ok := err.(minio.ErrorResponse); ok {
		switch minioErr.Code {
		case "NoSuchBucket", "NoSuchKey":
			return core.NewItemError(core.KindPermanent, op, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return core.NewItemError(core.KindPermanent, op, err)
		case "SlowDown", "ServiceUnavailable", "InternalError":
			return core.NewItemError(core.KindTransient, op, err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "unreachable"):
		return core.NewItemError(core.KindTransient, op, err)
	case strings.Contains(msg, "access denied"),
		strings.Contains(msg, "not found"),
		strings.Contains(msg, "does not exist"):
		return core.NewItemError(core.KindPermanent, op, err)
	default:
		return core.NewItemError(core.KindTransient, op, err)
	}
}
