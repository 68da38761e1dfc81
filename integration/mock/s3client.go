package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Client is a mock implementation of aws.S3Client for testing.
type S3Client struct {
	mu sync.RWMutex
	// Maps bucket/key to file content
	Files map[string][]byte
	// Maps bucket/key to content type
	ContentTypes map[string]string
	// Maps bucket/key to ETags
	ETags map[string]*string
	// Base directory for test files
	TestDataDir string

	failNextPut bool
	puts        int
}

// NewS3Client creates a new mock S3 client
func NewS3Client(testDataDir string) *S3Client {
	return &S3Client{
		Files:        make(map[string][]byte),
		ContentTypes: make(map[string]string),
		ETags:        make(map[string]*string),
		TestDataDir:  testDataDir,
	}
}

// LoadTestFiles uploads every .csv file below the test data directory to
// bucket, keyed by its path relative to the directory.
func (m *S3Client) LoadTestFiles(bucket string) error {
	if _, err := os.Stat(m.TestDataDir); os.IsNotExist(err) {
		return fmt.Errorf("test data directory does not exist: %s", m.TestDataDir)
	}

	return filepath.Walk(m.TestDataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".csv") {
			return nil
		}

		rel, err := filepath.Rel(m.TestDataDir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		m.AddFile(bucket, filepath.ToSlash(rel), data)
		return nil
	})
}

// AddFile stores content under bucket/key
func (m *S3Client) AddFile(bucket, key string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(bucket+"/"+key, content, "text/csv")
}

func (m *S3Client) store(bucketKey string, content []byte, contentType string) {
	m.Files[bucketKey] = content
	m.ContentTypes[bucketKey] = contentType
	m.ETags[bucketKey] = aws.String(fmt.Sprintf("\"%x\"", len(content)))
}

// File returns the content stored under bucket/key
func (m *S3Client) File(bucket, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.Files[bucket+"/"+key]
	return content, ok
}

// SetFailNextPut configures the client to fail the next PutObject
func (m *S3Client) SetFailNextPut(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextPut = fail
}

// Puts returns the number of successful PutObject calls
func (m *S3Client) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// GetObject implements the S3Client interface for reading objects
func (m *S3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bucketKey := fmt.Sprintf("%s/%s", *params.Bucket, *params.Key)
	content, ok := m.Files[bucketKey]
	if !ok {
		return nil, &types.NoSuchKey{
			Message: aws.String(fmt.Sprintf("The specified key does not exist: %s", *params.Key)),
		}
	}

	contentLength := int64(len(content))
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(content)),
		ContentType:   aws.String(m.ContentTypes[bucketKey]),
		ETag:          m.ETags[bucketKey],
		ContentLength: &contentLength,
	}, nil
}

// PutObject implements the S3Client interface for writing objects
func (m *S3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNextPut {
		m.failNextPut = false
		return nil, fmt.Errorf("simulated put failure")
	}

	bucketKey := fmt.Sprintf("%s/%s", *params.Bucket, *params.Key)
	m.store(bucketKey, data, aws.ToString(params.ContentType))
	m.puts++

	return &s3.PutObjectOutput{ETag: m.ETags[bucketKey]}, nil
}

// Keys returns the stored keys of bucket in sorted order
func (m *S3Client) Keys(bucket string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.Files {
		if key, ok := strings.CutPrefix(k, bucket+"/"); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
