// Package writer upserts employee records into DynamoDB.
package writer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gurre/employee-etl/aws"
	"github.com/gurre/employee-etl/employee"
)

// MaxBatchSize is the BatchWriteItem request limit.
const MaxBatchSize = 25

// maxAttempts bounds resubmission of throttled or unprocessed requests.
const maxAttempts = 8

// Writer upserts records by employee id. Existing items are replaced whole.
type Writer interface {
	Upsert(ctx context.Context, records []employee.Record) (int, error)
}

// DynamoDBWriter implements Writer with BatchWriteItem put requests.
type DynamoDBWriter struct {
	client    aws.DynamoDBClient
	tableName string
	batchSize int
}

// NewDynamoDBWriter creates a new DynamoDBWriter instance with the specified batch size.
// Sizes outside 1..25 are clamped.
func NewDynamoDBWriter(client aws.DynamoDBClient, tableName string, batchSize int) *DynamoDBWriter {
	if batchSize < 1 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &DynamoDBWriter{
		client:    client,
		tableName: tableName,
		batchSize: batchSize,
	}
}

// isThrottlingError returns true if the error is a DynamoDB throughput throttling error.
// These are capacity signals, not failures, and are resubmitted after a backoff.
func isThrottlingError(err error) bool {
	var throughputErr *types.ProvisionedThroughputExceededException
	var requestLimitErr *types.RequestLimitExceeded
	return errors.As(err, &throughputErr) || errors.As(err, &requestLimitErr)
}

// backoffWait sleeps for an exponentially increasing duration with jitter.
// Returns false if the context is cancelled during the wait.
func backoffWait(ctx context.Context, attempt int) bool {
	// Base delay 100ms, max delay 30s
	base := 100 * time.Millisecond
	maxDelay := 30 * time.Second

	delay := base * time.Duration(1<<uint(attempt))
	if delay > maxDelay {
		delay = maxDelay
	}

	// Add jitter: random value between 0 and delay
	jitter := time.Duration(rand.Int64N(int64(delay)))
	delay = delay + jitter

	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

// Upsert writes every record and returns the number of items put. Records
// sharing an employee id collapse to the last one, which keeps last-write-wins
// semantics and avoids DynamoDB's duplicate key rejection within a batch.
//
// Only throttling and UnprocessedItems are resubmitted. Any other error is
// returned immediately and the records of later batches are not written.
func (w *DynamoDBWriter) Upsert(ctx context.Context, records []employee.Record) (int, error) {
	records = collapse(records)
	written := 0

	for i := 0; i < len(records); i += w.batchSize {
		end := min(i+w.batchSize, len(records))
		batch := records[i:end]

		requests := make([]types.WriteRequest, 0, len(batch))
		for _, rec := range batch {
			item, err := employee.ToItem(rec)
			if err != nil {
				return written, err
			}
			requests = append(requests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		if err := w.writeBatch(ctx, requests); err != nil {
			return written, err
		}
		written += len(batch)
	}

	return written, nil
}

// writeBatch sends one BatchWriteItem call and resubmits whatever DynamoDB
// reports as unprocessed until nothing is left.
func (w *DynamoDBWriter) writeBatch(ctx context.Context, requests []types.WriteRequest) error {
	input := &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			w.tableName: requests,
		},
	}

	for attempt := 0; ; attempt++ {
		output, err := w.client.BatchWriteItem(ctx, input)
		if err != nil {
			if !isThrottlingError(err) {
				return fmt.Errorf("failed to write batch: %w", err)
			}
			if attempt+1 >= maxAttempts {
				return fmt.Errorf("batch still throttled after %d attempts: %w", maxAttempts, err)
			}
			if !backoffWait(ctx, attempt) {
				return ctx.Err()
			}
			continue
		}

		if len(output.UnprocessedItems) == 0 {
			return nil
		}
		if attempt+1 >= maxAttempts {
			return fmt.Errorf("%d items still unprocessed after %d attempts",
				len(output.UnprocessedItems[w.tableName]), maxAttempts)
		}
		input.RequestItems = output.UnprocessedItems
		if !backoffWait(ctx, attempt) {
			return ctx.Err()
		}
	}
}

// collapse keeps the last record for every employee id, in the order those
// last occurrences appear.
func collapse(records []employee.Record) []employee.Record {
	last := make(map[string]int, len(records))
	for i, rec := range records {
		last[rec.EmployeeID] = i
	}
	if len(last) == len(records) {
		return records
	}

	out := make([]employee.Record, 0, len(last))
	for i, rec := range records {
		if last[rec.EmployeeID] == i {
			out = append(out, rec)
		}
	}
	return out
}
