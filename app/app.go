// Package app assembles the pipeline from configuration. The Lambda
// functions and the operator CLI share it so every entry point runs the same
// components with the same settings.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/gurre/employee-etl/aws"
	"github.com/gurre/employee-etl/blob"
	"github.com/gurre/employee-etl/config"
	"github.com/gurre/employee-etl/employee"
	"github.com/gurre/employee-etl/ingest"
	"github.com/gurre/employee-etl/notify"
	"github.com/gurre/employee-etl/preflight"
	"github.com/gurre/employee-etl/report"
	"github.com/gurre/employee-etl/store"
	"github.com/gurre/employee-etl/writer"
	"github.com/gurre/s3streamer"
)

// Clients are the AWS clients the pipeline talks to.
type Clients struct {
	DynamoDB aws.DynamoDBClient
	S3       aws.S3Client
	SNS      aws.SNSClient
	IAM      aws.IAMClient
	Streamer s3streamer.Streamer
}

// App holds the wired components.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Ingestor *ingest.Ingestor
	Reporter *report.Reporter
	Streamer s3streamer.Streamer
	Checker  *preflight.Checker
}

// Options adjusts construction. The zero value is the production setup.
type Options struct {
	Clock func() time.Time // Overrides the report clock
}

// New loads the AWS configuration for cfg.Region and wires the pipeline.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	rawS3Client := s3.NewFromConfig(awsCfg)
	clients := Clients{
		DynamoDB: aws.NewDynamoDBClient(dynamodb.NewFromConfig(awsCfg)),
		S3:       aws.NewS3Client(rawS3Client),
		SNS:      aws.NewSNSClient(sns.NewFromConfig(awsCfg)),
		IAM:      aws.NewIAMClient(iam.NewFromConfig(awsCfg)),
		Streamer: s3streamer.NewS3Streamer(rawS3Client),
	}
	return FromClients(cfg, clients, logger, opts)
}

// FromClients wires the pipeline on top of existing clients.
func FromClients(cfg *config.Config, clients Clients, logger *slog.Logger, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UsesPlaceholders() {
		logger.Warn("placeholder configuration in use", "topic_arn", cfg.TopicARN)
	}

	policy, err := employee.ParseRowPolicy(cfg.RowPolicy)
	if err != nil {
		return nil, err
	}
	order, err := report.ParseOrder(cfg.ReportOrder)
	if err != nil {
		return nil, err
	}

	blobs := blob.NewS3Store(clients.S3)

	ingestor := ingest.NewIngestor(
		blobs,
		employee.NewCSVDecoder(policy),
		writer.NewDynamoDBWriter(clients.DynamoDB, cfg.TableName, cfg.BatchSize),
		logger.With("component", "ingest", "table", cfg.TableName),
	)

	reporter := report.NewReporter(
		store.NewDynamoDBScanner(clients.DynamoDB, cfg.TableName, cfg.ScanPageSize),
		blobs,
		notify.NewSNSNotifier(clients.SNS, cfg.TopicARN),
		report.Options{
			Bucket: cfg.ReportBucket,
			Order:  order,
			Clock:  opts.Clock,
			Logger: logger.With("component", "report", "table", cfg.TableName),
		},
	)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Ingestor: ingestor,
		Reporter: reporter,
		Streamer: clients.Streamer,
	}
	if clients.IAM != nil {
		a.Checker = preflight.NewChecker(clients.IAM)
	}
	return a, nil
}

// Plan describes the resources this deployment touches for input.
func (a *App) Plan(input blob.Location, reportKey string) preflight.Plan {
	return preflight.Plan{
		Input:        input,
		Region:       a.Config.Region,
		Table:        a.Config.TableName,
		ReportBucket: a.Config.ReportBucket,
		ReportKey:    reportKey,
		TopicARN:     a.Config.TopicARN,
	}
}
