// Package main is the Lambda function run by the daily schedule. Each
// invocation writes the department summary and notifies subscribers.
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

	lambda.Start(trigger.ReportHandler(a.Reporter))
}
