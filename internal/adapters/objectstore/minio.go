package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// Store uploads listing images to an S3 compatible bucket.
type Store struct {
	client *minio.Client
	bucket string
}

// New connects and makes sure bucket exists.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client for %s: %w", endpoint, err)
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		exists, errExists := client.BucketExists(ctx, bucket)
		if errExists != nil || !exists {
			return nil, fmt.Errorf("make bucket %s: %v (exists check: %v)", bucket, err, errExists)
		}
	}
	log.Info().Str("endpoint", endpoint).Str("bucket", bucket).Msg("object store ready")
	return &Store{client: client, bucket: bucket}, nil
}

func (s *Store) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	key := objectKey(name, uuid.NewString())
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", s.bucket, key, err)
	}
	log.Debug().Str("key", info.Key).Int64("size", info.Size).Msg("image uploaded")
	return objectURL(s.client.EndpointURL().String(), s.bucket, key), nil
}

// objectKey keeps the original extension so browsers can sniff the type.
func objectKey(name, id string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) > 10 || strings.ContainsAny(ext, "/\\ ") {
		ext = ""
	}
	return "listings/" + id + ext
}

func objectURL(endpoint, bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(endpoint, "/"), bucket, key)
}
