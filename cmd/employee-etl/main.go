// Package main is the operator command line for the employee pipeline. It
// runs the same ingest and report invocations as the Lambda functions, reads
// stored summaries back and checks a role's permissions before deployment.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/goccy/go-json"
	"github.com/gurre/employee-etl/app"
	"github.com/gurre/employee-etl/blob"
	"github.com/gurre/employee-etl/config"
	"github.com/gurre/employee-etl/logging"
	"github.com/gurre/employee-etl/report"
	"github.com/gurre/employee-etl/trigger"
)

const usage = `usage: employee-etl <command> [flags]

commands:
  ingest  -uri s3://bucket/key | -event notification.json
  report  [-date YYYY-MM-DD]
  show    [-date YYYY-MM-DD]
  check   -principal ARN -input s3://bucket/key

configuration is read from the environment (TABLE_NAME, REPORT_BUCKET,
SNS_TOPIC_ARN, AWS_REGION, ROW_POLICY, REPORT_ORDER, BATCH_SIZE,
SCAN_PAGE_SIZE, LOG_LEVEL, LOG_FORMAT)
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("command is required")
	}

	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	timeout := fs.Duration("timeout", 15*time.Minute, "Abort the command after this long")

	var (
		execute    func(ctx context.Context, a *app.App) (any, error)
		reportDate *string
	)

	switch cmd {
	case "ingest":
		uri := fs.String("uri", "", "S3 URI of the CSV file to ingest (s3://bucket/key)")
		eventFile := fs.String("event", "", "Path to an S3 notification event (JSON)")
		execute = func(ctx context.Context, a *app.App) (any, error) {
			event, err := ingestEvent(*uri, *eventFile)
			if err != nil {
				return nil, err
			}
			return trigger.IngestHandler(a.Ingestor)(ctx, event)
		}

	case "report":
		reportDate = fs.String("date", "", "Report date (YYYY-MM-DD), defaults to today in UTC")
		execute = func(ctx context.Context, a *app.App) (any, error) {
			return a.Reporter.Generate(ctx)
		}

	case "show":
		date := fs.String("date", "", "Report date (YYYY-MM-DD), defaults to today in UTC")
		execute = func(ctx context.Context, a *app.App) (any, error) {
			t, err := parseDate(*date)
			if err != nil {
				return nil, err
			}
			return report.ReadSummary(ctx, a.Streamer, a.Config.ReportBucket, report.KeyFor(t))
		}

	case "check":
		principal := fs.String("principal", "", "ARN of the role or user the functions run as")
		input := fs.String("input", "", "S3 URI of a sample upload (s3://bucket/key)")
		execute = func(ctx context.Context, a *app.App) (any, error) {
			if *principal == "" {
				return nil, fmt.Errorf("-principal is required")
			}
			loc, err := blob.ParseURI(*input)
			if err != nil {
				return nil, err
			}
			denied, err := a.Checker.Check(ctx, *principal, a.Plan(loc, report.KeyFor(time.Now().UTC())))
			if err != nil {
				return nil, err
			}
			if len(denied) > 0 {
				printJSON(out, denied)
				return nil, fmt.Errorf("%d permission(s) denied for %s", len(denied), *principal)
			}
			return map[string]string{"status": "allowed", "principal": *principal}, nil
		}

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	var opts app.Options
	if reportDate != nil {
		t, err := parseDate(*reportDate)
		if err != nil {
			return err
		}
		opts.Clock = func() time.Time { return t }
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	a, err := app.New(ctx, cfg, logger, opts)
	if err != nil {
		return err
	}

	result, err := execute(ctx, a)
	if err != nil {
		return fmt.Errorf("%s failed: %w", cmd, err)
	}
	return printJSON(out, result)
}

// ingestEvent builds the S3 notification to process, either from a single
// URI or from a saved event.
func ingestEvent(uri, eventFile string) (events.S3Event, error) {
	var event events.S3Event

	switch {
	case uri != "" && eventFile != "":
		return event, fmt.Errorf("-uri and -event are mutually exclusive")

	case uri != "":
		loc, err := blob.ParseURI(uri)
		if err != nil {
			return event, err
		}
		var rec events.S3EventRecord
		rec.EventSource = "aws:s3"
		rec.EventName = "ObjectCreated:Put"
		rec.S3.Bucket.Name = loc.Bucket
		// Notifications carry form-encoded keys
		rec.S3.Object.Key = url.QueryEscape(loc.Key)
		event.Records = []events.S3EventRecord{rec}
		return event, nil

	case eventFile != "":
		data, err := os.ReadFile(eventFile)
		if err != nil {
			return event, fmt.Errorf("failed to read event: %w", err)
		}
		if err := json.Unmarshal(data, &event); err != nil {
			return event, fmt.Errorf("failed to parse event: %w", err)
		}
		return event, nil

	default:
		return event, fmt.Errorf("-uri or -event is required")
	}
}

func parseDate(date string) (time.Time, error) {
	if date == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}
	return t, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
