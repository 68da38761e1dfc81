// Package ingest loads one uploaded employee CSV file into the employee table.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gurre/employee-etl/blob"
	"github.com/gurre/employee-etl/employee"
	"github.com/gurre/employee-etl/metrics"
	"github.com/gurre/employee-etl/writer"
)

// Errors returned by Ingest. Read failures are returned wrapped as they come
// from the blob store, so errors.Is(err, blob.ErrNotFound) works.
var (
	ErrMalformedRow     = employee.ErrMalformedRow
	ErrStoreWriteFailed = errors.New("store write failed")
)

// Result describes a completed ingest.
type Result struct {
	Bucket      string              `json:"bucket"`
	Key         string              `json:"key"`
	RowsRead    int                 `json:"rowsRead"`
	RowsWritten int                 `json:"rowsWritten"`
	RowsSkipped int                 `json:"rowsSkipped"`
	Skipped     []employee.RowError `json:"skipped,omitempty"`
}

// Ingestor reads a CSV blob and upserts its rows. It holds no per-file state,
// so one Ingestor may serve any number of sequential or concurrent calls.
type Ingestor struct {
	blobs   blob.Store
	decoder employee.Decoder
	writer  writer.Writer
	logger  *slog.Logger
}

// NewIngestor creates an Ingestor. A nil logger uses slog.Default().
func NewIngestor(blobs blob.Store, decoder employee.Decoder, w writer.Writer, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		blobs:   blobs,
		decoder: decoder,
		writer:  w,
		logger:  logger,
	}
}

// Ingest reads the file at loc, validates every row and then upserts the
// valid ones keyed by employee id.
//
// Validation completes before the first write: when the decoder aborts on a
// malformed row, the table is left untouched. A store failure part-way
// through leaves earlier batches written; the caller retries the whole file.
func (i *Ingestor) Ingest(ctx context.Context, loc blob.Location) (res Result, err error) {
	res = Result{Bucket: loc.Bucket, Key: loc.Key}
	m := metrics.NewMetrics("ingest")
	log := i.logger.With("run_id", m.RunID(), "bucket", loc.Bucket, "key", loc.Key)

	defer func() {
		if err != nil {
			m.RecordError()
			log.Error("ingest failed", "error", err, "metrics", m.GenerateReport())
			return
		}
		log.Info("ingest complete", "metrics", m.GenerateReport())
	}()

	data, err := i.blobs.Read(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return res, fmt.Errorf("failed to read %s: %w", loc, err)
	}

	var records []employee.Record
	stats, err := i.decoder.Decode(bytes.NewReader(data), func(rec employee.Record) error {
		records = append(records, rec)
		return nil
	})
	res.RowsRead = stats.Rows
	res.RowsSkipped = len(stats.Skipped)
	res.Skipped = stats.Skipped
	m.AddRowsRead(stats.Rows)
	m.AddRowsSkipped(len(stats.Skipped))
	if err != nil {
		return res, fmt.Errorf("failed to decode %s: %w", loc, err)
	}

	for _, rowErr := range stats.Skipped {
		log.Warn("skipped malformed row", "line", rowErr.Line, "reason", rowErr.Reason)
	}

	n, err := i.writer.Upsert(ctx, records)
	res.RowsWritten = n
	m.AddRowsWritten(n)
	if err != nil {
		return res, fmt.Errorf("%w: %s after %d items: %w", ErrStoreWriteFailed, loc, n, err)
	}

	return res, nil
}
