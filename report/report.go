package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/gurre/employee-etl/blob"
	"github.com/gurre/employee-etl/employee"
	"github.com/gurre/employee-etl/metrics"
	"github.com/gurre/employee-etl/notify"
	"github.com/gurre/employee-etl/store"
)

// Errors returned by Generate. ErrNotifyFailed means the summary was already
// stored; only the notification is missing.
var (
	ErrScanFailed   = errors.New("scan failed")
	ErrWriteFailed  = errors.New("report write failed")
	ErrNotifyFailed = errors.New("notification failed")
)

// Notification text.
const (
	Subject       = "Daily Employee Summary Generated"
	messageFormat = "Summary report generated and saved to %s/%s"
)

// StatusSuccess is the Result status of a fully completed run.
const StatusSuccess = "success"

// Result describes a report run.
type Result struct {
	Status      string `json:"status"`
	ReportKey   string `json:"report_key"`
	Bucket      string `json:"bucket"`
	Departments int    `json:"departments"`
	Records     int64  `json:"records"`
}

// Options configures a Reporter.
type Options struct {
	Bucket string           // Destination bucket for summaries
	Order  Order            // Row order, OrderByName by default
	Clock  func() time.Time // Names the artifact; defaults to UTC now
	Logger *slog.Logger     // Defaults to slog.Default()
}

// Reporter produces the daily department summary.
type Reporter struct {
	scanner  store.Scanner
	blobs    blob.Store
	notifier notify.Notifier
	bucket   string
	order    Order
	clock    func() time.Time
	logger   *slog.Logger
}

// NewReporter creates a Reporter with the given collaborators
func NewReporter(scanner store.Scanner, blobs blob.Store, notifier notify.Notifier, opts Options) *Reporter {
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Reporter{
		scanner:  scanner,
		blobs:    blobs,
		notifier: notifier,
		bucket:   opts.Bucket,
		order:    opts.Order,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}
}

// Generate scans the table, aggregates per department, writes
// daily_summary_<date>.csv (replacing any earlier run of the same day) and
// publishes a notification naming it. Each step runs once; the first failure
// ends the run.
func (r *Reporter) Generate(ctx context.Context) (res Result, err error) {
	key := KeyFor(r.clock())
	res = Result{ReportKey: key, Bucket: r.bucket}
	m := metrics.NewMetrics("report")
	log := r.logger.With("run_id", m.RunID(), "bucket", r.bucket, "key", key)

	defer func() {
		if err != nil {
			m.RecordError()
			log.Error("report failed", "error", err, "metrics", m.GenerateReport())
			return
		}
		log.Info("report complete", "metrics", m.GenerateReport())
	}()

	summaries, err := Aggregate(counted(r.scanner.Records(ctx), m), r.order)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrScanFailed, err)
	}
	res.Departments = len(summaries)
	for _, s := range summaries {
		res.Records += s.EmployeeCount
	}
	m.SetDepartments(len(summaries))

	var buf bytes.Buffer
	if err := WriteCSV(&buf, summaries); err != nil {
		return res, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := r.blobs.Write(ctx, r.bucket, key, buf.Bytes(), "text/csv"); err != nil {
		return res, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	log.Debug("summary stored", "bytes", buf.Len(), "departments", len(summaries))

	message := fmt.Sprintf(messageFormat, r.bucket, key)
	attrs := map[string]string{
		"report_bucket": r.bucket,
		"report_key":    key,
	}
	if err := r.notifier.Publish(ctx, Subject, message, attrs); err != nil {
		return res, fmt.Errorf("%w: s3://%s/%s is stored: %w", ErrNotifyFailed, r.bucket, key, err)
	}

	res.Status = StatusSuccess
	return res, nil
}

// counted passes records through while counting them.
func counted(records iter.Seq2[employee.Record, error], m *metrics.Metrics) iter.Seq2[employee.Record, error] {
	return func(yield func(employee.Record, error) bool) {
		for rec, err := range records {
			if err == nil {
				m.RecordScanned()
			}
			if !yield(rec, err) {
				return
			}
		}
	}
}
