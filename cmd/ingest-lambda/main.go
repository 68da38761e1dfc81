// Package main is the Lambda function triggered by uploads to the employee
// bucket. Each invocation ingests the uploaded CSV files into the table.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/gurre/employee-etl/app"
	"github.com/gurre/employee-etl/config"
	"github.com/gurre/employee-etl/logging"
	"github.com/gurre/employee-etl/trigger"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	a, err := app.New(context.Background(), cfg, logger, app.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	lambda.Start(trigger.IngestHandler(a.Ingestor))
}
