// Package blob reads and writes whole objects addressed by bucket and key.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gurre/employee-etl/aws"
)

// ErrNotFound is returned by Read when the object does not exist.
var ErrNotFound = errors.New("object not found")

// Location addresses one object.
type Location struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// ParseURI parses an s3://bucket/key URI.
func ParseURI(uri string) (Location, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("invalid S3 URI: %w", err)
	}
	if u.Scheme != "s3" {
		return Location{}, fmt.Errorf("invalid S3 URI scheme: %s", u.Scheme)
	}
	loc := Location{Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}
	if loc.Bucket == "" || loc.Key == "" {
		return Location{}, fmt.Errorf("invalid S3 URI format: %s (must be s3://bucket/key)", uri)
	}
	return loc, nil
}

// String returns the location as an s3:// URI.
func (l Location) String() string {
	return "s3://" + l.Bucket + "/" + l.Key
}

// Store reads and writes whole objects. Write replaces any existing object.
type Store interface {
	Read(ctx context.Context, bucket, key string) ([]byte, error)
	Write(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

// S3Store implements Store using AWS S3.
type S3Store struct {
	client aws.S3Client
}

// NewS3Store creates a new S3Store instance
func NewS3Store(client aws.S3Client) *S3Store {
	return &S3Store{client: client}
}

// Read fetches the full object body.
func (s *S3Store) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
		}
		// Also check for NotFound which some S3-compatible stores return
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	if resp.Body == nil {
		return nil, fmt.Errorf("response body for s3://%s/%s is nil", bucket, key)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Write uploads body in a single PutObject call.
func (s *S3Store) Write(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		input.ContentType = &contentType
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
