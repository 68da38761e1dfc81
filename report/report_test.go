package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"testing"
	"time"

	"github.com/gurre/employee-etl/blob"
	"github.com/gurre/employee-etl/employee"
	"github.com/gurre/employee-etl/notify"
	"github.com/gurre/employee-etl/store"
)

const testBucket = "summary-bucket"

var testDate = time.Date(2024, time.May, 1, 8, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testDate }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	_, err := s.Upsert(context.Background(), []employee.Record{
		{EmployeeID: "1", Name: "Ann", Department: "Eng", Salary: 100},
		{EmployeeID: "2", Name: "Bo", Department: "Eng", Salary: 200},
		{EmployeeID: "3", Name: "Cy", Department: "Sales", Salary: 50},
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return s
}

func newTestReporter(scanner store.Scanner, blobs blob.Store, n notify.Notifier) *Reporter {
	return NewReporter(scanner, blobs, n, Options{
		Bucket: testBucket,
		Clock:  fixedClock,
		Logger: quietLogger(),
	})
}

type failingScanner struct {
	err error
}

func (f failingScanner) Records(ctx context.Context) iter.Seq2[employee.Record, error] {
	return func(yield func(employee.Record, error) bool) {
		yield(employee.Record{}, f.err)
	}
}

type failingBlobs struct {
	blob.Store
	err error
}

func (f failingBlobs) Write(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	return f.err
}

func TestGenerateSample(t *testing.T) {
	blobs := blob.NewMemoryStore()
	notifier := notify.NewMemoryNotifier()

	res, err := newTestReporter(sampleStore(t), blobs, notifier).Generate(context.Background())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if res.Status != StatusSuccess {
		t.Errorf("expected status %s, got %s", StatusSuccess, res.Status)
	}
	if res.ReportKey != "daily_summary_2024-05-01.csv" {
		t.Errorf("unexpected key %s", res.ReportKey)
	}
	if res.Departments != 2 || res.Records != 3 {
		t.Errorf("expected 2 departments and 3 records, got %d and %d", res.Departments, res.Records)
	}

	body, err := blobs.Read(context.Background(), testBucket, res.ReportKey)
	if err != nil {
		t.Fatalf("report not stored: %v", err)
	}
	want := "Department,EmployeeCount,TotalSalary,AverageSalary\n" +
		"Eng,2,300,150.0\n" +
		"Sales,1,50,50.0\n"
	if string(body) != want {
		t.Errorf("expected\n%s\ngot\n%s", want, body)
	}
	if ct := blobs.ContentType(testBucket, res.ReportKey); ct != "text/csv" {
		t.Errorf("expected text/csv content type, got %q", ct)
	}

	msgs := notifier.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(msgs))
	}
	if msgs[0].Subject != Subject {
		t.Errorf("unexpected subject %q", msgs[0].Subject)
	}
	if msgs[0].Body != "Summary report generated and saved to summary-bucket/daily_summary_2024-05-01.csv" {
		t.Errorf("unexpected message %q", msgs[0].Body)
	}
	if msgs[0].Attrs["report_key"] != res.ReportKey || msgs[0].Attrs["report_bucket"] != testBucket {
		t.Errorf("unexpected attributes %v", msgs[0].Attrs)
	}
}

func TestGenerateEmptyTable(t *testing.T) {
	blobs := blob.NewMemoryStore()

	res, err := newTestReporter(store.NewMemoryStore(), blobs, notify.NewMemoryNotifier()).Generate(context.Background())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if res.Status != StatusSuccess || res.Departments != 0 {
		t.Errorf("unexpected result %+v", res)
	}

	body, _ := blobs.Read(context.Background(), testBucket, res.ReportKey)
	if string(body) != "Department,EmployeeCount,TotalSalary,AverageSalary\n" {
		t.Errorf("expected header-only report, got %q", body)
	}
}

func TestGenerateRerunIsIdentical(t *testing.T) {
	blobs := blob.NewMemoryStore()
	r := newTestReporter(sampleStore(t), blobs, notify.NewMemoryNotifier())

	res, err := r.Generate(context.Background())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	first, _ := blobs.Read(context.Background(), testBucket, res.ReportKey)

	if _, err := r.Generate(context.Background()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	second, _ := blobs.Read(context.Background(), testBucket, res.ReportKey)

	if !bytes.Equal(first, second) {
		t.Errorf("reruns differ:\n%s\n%s", first, second)
	}
	if keys := blobs.Keys(testBucket); len(keys) != 1 {
		t.Errorf("expected a single object, got %v", keys)
	}
}

func TestGenerateOverwritesSameDay(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemoryStore()
	employees := sampleStore(t)
	r := newTestReporter(employees, blobs, notify.NewMemoryNotifier())

	if _, err := r.Generate(ctx); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	employees.Upsert(ctx, []employee.Record{{EmployeeID: "3", Name: "Cy", Department: "Sales", Salary: 70}})

	res, err := r.Generate(ctx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	body, _ := blobs.Read(ctx, testBucket, res.ReportKey)
	if !bytes.Contains(body, []byte("Sales,1,70,70.0\n")) {
		t.Errorf("expected updated Sales row, got\n%s", body)
	}
	if blobs.Writes() != 2 {
		t.Errorf("expected 2 writes, got %d", blobs.Writes())
	}
}

func TestGenerateFirstSeenOrder(t *testing.T) {
	ctx := context.Background()
	employees := store.NewMemoryStore()
	employees.Upsert(ctx, []employee.Record{
		{EmployeeID: "1", Department: "Sales", Salary: 10},
		{EmployeeID: "2", Department: "Eng", Salary: 20},
	})
	blobs := blob.NewMemoryStore()

	r := NewReporter(employees, blobs, notify.NewMemoryNotifier(), Options{
		Bucket: testBucket,
		Order:  OrderFirstSeen,
		Clock:  fixedClock,
		Logger: quietLogger(),
	})
	res, err := r.Generate(ctx)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	body, _ := blobs.Read(ctx, testBucket, res.ReportKey)
	want := "Department,EmployeeCount,TotalSalary,AverageSalary\n" +
		"Sales,1,10,10.0\n" +
		"Eng,1,20,20.0\n"
	if string(body) != want {
		t.Errorf("expected\n%s\ngot\n%s", want, body)
	}
}

func TestGenerateScanFailure(t *testing.T) {
	boom := errors.New("table unavailable")
	blobs := blob.NewMemoryStore()
	notifier := notify.NewMemoryNotifier()

	res, err := newTestReporter(failingScanner{err: boom}, blobs, notifier).Generate(context.Background())
	if !errors.Is(err, ErrScanFailed) || !errors.Is(err, boom) {
		t.Fatalf("expected ErrScanFailed wrapping cause, got %v", err)
	}
	if res.Status == StatusSuccess {
		t.Error("failed run reported success")
	}
	if blobs.Writes() != 0 || len(notifier.Messages()) != 0 {
		t.Error("scan failure must not write or notify")
	}
}

func TestGenerateWriteFailure(t *testing.T) {
	boom := errors.New("access denied")
	notifier := notify.NewMemoryNotifier()

	_, err := newTestReporter(sampleStore(t), failingBlobs{err: boom}, notifier).Generate(context.Background())
	if !errors.Is(err, ErrWriteFailed) || !errors.Is(err, boom) {
		t.Fatalf("expected ErrWriteFailed wrapping cause, got %v", err)
	}
	if errors.Is(err, ErrNotifyFailed) {
		t.Error("write failure reported as notify failure")
	}
	if len(notifier.Messages()) != 0 {
		t.Error("write failure must not notify")
	}
}

func TestGenerateNotifyFailureKeepsArtifact(t *testing.T) {
	boom := errors.New("topic missing")
	blobs := blob.NewMemoryStore()
	notifier := notify.NewMemoryNotifier()
	notifier.FailWith(boom)

	res, err := newTestReporter(sampleStore(t), blobs, notifier).Generate(context.Background())
	if !errors.Is(err, ErrNotifyFailed) || !errors.Is(err, boom) {
		t.Fatalf("expected ErrNotifyFailed wrapping cause, got %v", err)
	}
	if errors.Is(err, ErrWriteFailed) {
		t.Error("notify failure reported as write failure")
	}
	if res.ReportKey != "daily_summary_2024-05-01.csv" {
		t.Errorf("expected key on failed result, got %q", res.ReportKey)
	}
	if _, err := blobs.Read(context.Background(), testBucket, res.ReportKey); err != nil {
		t.Errorf("artifact should be stored before notification: %v", err)
	}
}

func TestGenerateMalformedItem(t *testing.T) {
	ctx := context.Background()
	employees := store.NewMemoryStore()
	employees.Upsert(ctx, []employee.Record{{EmployeeID: "1", Department: "Eng", Salary: -5}})

	_, err := newTestReporter(employees, blob.NewMemoryStore(), notify.NewMemoryNotifier()).Generate(ctx)
	if !errors.Is(err, ErrScanFailed) || !errors.Is(err, employee.ErrMalformedItem) {
		t.Errorf("expected ErrScanFailed wrapping ErrMalformedItem, got %v", err)
	}
}

func TestNewReporterDefaults(t *testing.T) {
	r := NewReporter(store.NewMemoryStore(), blob.NewMemoryStore(), notify.NewMemoryNotifier(), Options{Bucket: testBucket})
	if r.logger == nil || r.clock == nil {
		t.Fatal("expected default logger and clock")
	}
	if loc := r.clock().Location(); loc != time.UTC {
		t.Errorf("expected UTC clock, got %v", loc)
	}
}
