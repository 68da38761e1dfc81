// Package store reads the employee table back as a single lazy sequence.
package store

import (
	"context"
	"fmt"
	"iter"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gurre/employee-etl/aws"
	"github.com/gurre/employee-etl/employee"
)

// Scanner yields every employee record in the table.
type Scanner interface {
	Records(ctx context.Context) iter.Seq2[employee.Record, error]
}

// DynamoDBScanner implements Scanner with a paginated Scan. Pages are fetched
// on demand as the sequence is consumed.
type DynamoDBScanner struct {
	client    aws.DynamoDBClient
	tableName string
	pageSize  int32
}

// NewDynamoDBScanner creates a scanner. A pageSize of 0 lets DynamoDB pick
// the page size (up to 1 MB of data).
func NewDynamoDBScanner(client aws.DynamoDBClient, tableName string, pageSize int) *DynamoDBScanner {
	return &DynamoDBScanner{
		client:    client,
		tableName: tableName,
		pageSize:  int32(pageSize),
	}
}

// Records follows LastEvaluatedKey until the table is exhausted. A page or
// item error is yielded once and ends the sequence.
func (s *DynamoDBScanner) Records(ctx context.Context) iter.Seq2[employee.Record, error] {
	return func(yield func(employee.Record, error) bool) {
		input := &dynamodb.ScanInput{
			TableName:      &s.tableName,
			ConsistentRead: awssdk.Bool(true),
		}
		if s.pageSize > 0 {
			input.Limit = awssdk.Int32(s.pageSize)
		}

		paginator := dynamodb.NewScanPaginator(s.client, input)
		for page := 1; paginator.HasMorePages(); page++ {
			out, err := paginator.NextPage(ctx)
			if err != nil {
				yield(employee.Record{}, fmt.Errorf("failed to scan page %d of %s: %w", page, s.tableName, err))
				return
			}

			for _, item := range out.Items {
				rec, err := employee.FromItem(item)
				if err != nil {
					yield(employee.Record{}, err)
					return
				}
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}
