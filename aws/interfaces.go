// Package aws narrows the AWS SDK clients to the calls the pipeline makes.
// Components depend on these interfaces so tests can substitute mocks.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// DynamoDBClient covers the employee table: batched upserts on ingest and
// paginated scans on report.
type DynamoDBClient interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// S3Client covers reading uploaded CSV files and writing report artifacts.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SNSClient publishes the report notification.
type SNSClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// IAMClient simulates the pipeline's permissions for preflight checks.
type IAMClient interface {
	SimulatePrincipalPolicy(ctx context.Context, params *iam.SimulatePrincipalPolicyInput, optFns ...func(*iam.Options)) (*iam.SimulatePrincipalPolicyOutput, error)
}

// Compile-time interface checks to ensure implementations satisfy interfaces
var (
	_ DynamoDBClient = (*DynamoDBClientImpl)(nil)
	_ S3Client       = (*S3ClientImpl)(nil)
	_ SNSClient      = (*SNSClientImpl)(nil)
	_ IAMClient      = (*IAMClientImpl)(nil)

	// AWS SDK interface checks to ensure SDK clients satisfy interfaces
	_ DynamoDBClient = (*dynamodb.Client)(nil)
	_ S3Client       = (*s3.Client)(nil)
	_ SNSClient      = (*sns.Client)(nil)
	_ IAMClient      = (*iam.Client)(nil)

	// The scan paginator accepts any DynamoDBClient
	_ dynamodb.ScanAPIClient = (DynamoDBClient)(nil)
)
