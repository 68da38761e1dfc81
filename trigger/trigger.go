// Package trigger adapts Lambda events to the ingest and report invocations.
package trigger

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gurre/employee-etl/blob"
	"github.com/gurre/employee-etl/ingest"
	"github.com/gurre/employee-etl/report"
)

// Ingester loads one object. *ingest.Ingestor implements it.
type Ingester interface {
	Ingest(ctx context.Context, loc blob.Location) (ingest.Result, error)
}

// Generator produces one report. *report.Reporter implements it.
type Generator interface {
	Generate(ctx context.Context) (report.Result, error)
}

// IngestResponse is returned to the Lambda runtime after an upload event.
type IngestResponse struct {
	Status  string          `json:"status"`
	Objects []ingest.Result `json:"objects"`
}

// IngestHandler returns a handler for S3 object-created notifications.
// Records are ingested in event order and the first failure fails the
// invocation; objects ingested before it stay written.
func IngestHandler(ing Ingester) func(context.Context, events.S3Event) (IngestResponse, error) {
	return func(ctx context.Context, event events.S3Event) (IngestResponse, error) {
		locs, err := Locations(event)
		if err != nil {
			return IngestResponse{}, err
		}
		if len(locs) == 0 {
			return IngestResponse{}, fmt.Errorf("event carries no S3 records")
		}

		resp := IngestResponse{Objects: make([]ingest.Result, 0, len(locs))}
		for _, loc := range locs {
			res, err := ing.Ingest(ctx, loc)
			if err != nil {
				return resp, fmt.Errorf("failed to ingest %s: %w", loc, err)
			}
			resp.Objects = append(resp.Objects, res)
		}
		resp.Status = report.StatusSuccess
		return resp, nil
	}
}

// ReportHandler returns a handler for the scheduled report rule. The event
// payload is ignored.
func ReportHandler(gen Generator) func(context.Context, events.EventBridgeEvent) (report.Result, error) {
	return func(ctx context.Context, _ events.EventBridgeEvent) (report.Result, error) {
		return gen.Generate(ctx)
	}
}

// Locations extracts the objects named by an S3 notification. Keys arrive
// form-encoded ("my+file.csv" names "my file.csv") and are decoded here.
func Locations(event events.S3Event) ([]blob.Location, error) {
	locs := make([]blob.Location, 0, len(event.Records))
	for i, rec := range event.Records {
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid object key %q: %w", i, rec.S3.Object.Key, err)
		}
		if rec.S3.Bucket.Name == "" || key == "" {
			return nil, fmt.Errorf("record %d: missing bucket or key", i)
		}
		locs = append(locs, blob.Location{Bucket: rec.S3.Bucket.Name, Key: key})
	}
	return locs, nil
}
