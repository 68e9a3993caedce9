// Package objectstore removes uploaded application documents from S3.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"rental_portal/internal/adapters/observability"
	"rental_portal/internal/domain"
)

// S3 batch deletes accept at most this many keys.
const maxBatch = 1000

type S3API interface {
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type Store struct {
	client S3API
	bucket string
}

var _ domain.DocumentStore = (*Store)(nil)

// NewS3 builds a store for bucket. endpoint is optional (MinIO, localstack).
func NewS3(ctx context.Context, region, bucket, endpoint string) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, bucket), nil
}

func NewWithClient(c S3API, bucket string) *Store { return &Store{client: c, bucket: bucket} }

// RemoveDocuments deletes the objects behind urls. URLs that do not point
// into the bucket are skipped.
func (s *Store) RemoveDocuments(ctx context.Context, urls []string) error {
	var ids []types.ObjectIdentifier
	for _, u := range urls {
		key, ok := s.keyFromURL(u)
		if !ok {
			log.Warn().Str("url", u).Str("bucket", s.bucket).Msg("document url outside bucket; not removed")
			continue
		}
		ids = append(ids, types.ObjectIdentifier{Key: aws.String(key)})
	}

	var errs []error
	for len(ids) > 0 {
		n := min(len(ids), maxBatch)
		batch := ids[:n]
		ids = ids[n:]

		start := time.Now()
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: batch, Quiet: aws.Bool(true)},
		})
		status := 200
		if err != nil {
			status = 0
		}
		observability.ObserveExternal("s3", "delete_objects", status, time.Since(start))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, e := range out.Errors {
			errs = append(errs, fmt.Errorf("delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message)))
		}
	}
	return errors.Join(errs...)
}

// keyFromURL accepts s3://bucket/key, virtual-hosted https://bucket.host/key
// and path-style https://host/bucket/key.
func (s *Store) keyFromURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	path := strings.TrimPrefix(u.Path, "/")
	switch {
	case u.Scheme == "s3":
		if u.Host != s.bucket || path == "" {
			return "", false
		}
		return path, true
	case strings.HasPrefix(u.Host, s.bucket+"."):
		return path, path != ""
	case strings.HasPrefix(path, s.bucket+"/"):
		key := strings.TrimPrefix(path, s.bucket+"/")
		return key, key != ""
	}
	return "", false
}
