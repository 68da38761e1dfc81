package mock

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
)

// Stream provides a simplified implementation of s3streamer.Streamer for
// testing. It reads straight from the Files map and reports the byte offset
// at which each line starts; lines before offset are skipped.
func (m *S3Client) Stream(ctx context.Context, bucket, key string, offset int64, fn func([]byte, int64) error) error {
	content, ok := m.File(bucket, key)
	if !ok {
		return fmt.Errorf("mock S3: key not found: %s/%s", bucket, key)
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB buffer

	pos := int64(0)
	for scanner.Scan() {
		line := scanner.Bytes()
		if pos >= offset {
			if err := fn(line, pos); err != nil {
				return err
			}
		}
		pos += int64(len(line)) + 1

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error scanning lines: %w", err)
	}
	return nil
}
