// Package metrics collects per-invocation counters for ingest and report runs
// and renders them as the summary logged when an invocation finishes.
package metrics

import (
	"fmt"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Metrics collects counters for one invocation.
// It uses atomic operations for thread-safe counter updates.
type Metrics struct {
	operation string
	runID     string

	rowsRead       int64 // CSV data rows seen
	rowsWritten    int64 // Items put into the table
	rowsSkipped    int64 // Malformed rows dropped under the skip policy
	recordsScanned int64 // Items read back by the report scan
	departments    int64 // Aggregate rows emitted
	errors         int64 // Errors that ended the invocation

	startTime time.Time
}

// NewMetrics creates a new Metrics instance for the named operation. Each
// instance gets a random run id for correlating log lines.
func NewMetrics(operation string) *Metrics {
	return &Metrics{
		operation: operation,
		runID:     uuid.NewString(),
		startTime: time.Now(),
	}
}

// RunID returns the id of this invocation
func (m *Metrics) RunID() string {
	return m.runID
}

// AddRowsRead adds to the rows read counter
func (m *Metrics) AddRowsRead(n int) {
	atomic.AddInt64(&m.rowsRead, int64(n))
}

// AddRowsWritten adds to the items written counter
func (m *Metrics) AddRowsWritten(n int) {
	atomic.AddInt64(&m.rowsWritten, int64(n))
}

// AddRowsSkipped adds to the skipped rows counter
func (m *Metrics) AddRowsSkipped(n int) {
	atomic.AddInt64(&m.rowsSkipped, int64(n))
}

// RecordScanned increments the scanned records counter
func (m *Metrics) RecordScanned() {
	atomic.AddInt64(&m.recordsScanned, 1)
}

// SetDepartments records the number of aggregate rows
func (m *Metrics) SetDepartments(n int) {
	atomic.StoreInt64(&m.departments, int64(n))
}

// RecordError increments the errors counter
func (m *Metrics) RecordError() {
	atomic.AddInt64(&m.errors, 1)
}

// Report is the final summary of an invocation.
type Report struct {
	Operation      string        `json:"operation"`
	RunID          string        `json:"runId"`
	StartTime      time.Time     `json:"startTime"`
	EndTime        time.Time     `json:"endTime"`
	RowsRead       int64         `json:"rowsRead,omitempty"`
	RowsWritten    int64         `json:"rowsWritten,omitempty"`
	RowsSkipped    int64         `json:"rowsSkipped,omitempty"`
	RecordsScanned int64         `json:"recordsScanned,omitempty"`
	Departments    int64         `json:"departments,omitempty"`
	Errors         int64         `json:"errors"`
	Duration       time.Duration `json:"duration"`
	Throughput     float64       `json:"throughput"` // Rows or records per second
}

// GenerateReport snapshots the counters and computes duration and throughput.
func (m *Metrics) GenerateReport() Report {
	endTime := time.Now()
	duration := endTime.Sub(m.startTime)

	processed := atomic.LoadInt64(&m.rowsRead) + atomic.LoadInt64(&m.recordsScanned)
	var throughput float64
	if duration > 0 {
		throughput = float64(processed) / duration.Seconds()
	}

	return Report{
		Operation:      m.operation,
		RunID:          m.runID,
		StartTime:      m.startTime,
		EndTime:        endTime,
		RowsRead:       atomic.LoadInt64(&m.rowsRead),
		RowsWritten:    atomic.LoadInt64(&m.rowsWritten),
		RowsSkipped:    atomic.LoadInt64(&m.rowsSkipped),
		RecordsScanned: atomic.LoadInt64(&m.recordsScanned),
		Departments:    atomic.LoadInt64(&m.departments),
		Errors:         atomic.LoadInt64(&m.errors),
		Duration:       duration,
		Throughput:     throughput,
	}
}

// MarshalJSON renders Duration as a string
func (r Report) MarshalJSON() ([]byte, error) {
	type Alias Report
	return json.Marshal(&struct {
		Alias
		Duration string `json:"duration"`
	}{
		Alias:    Alias(r),
		Duration: r.Duration.String(),
	})
}

// String returns a human-readable string representation of the report
func (r Report) String() string {
	return fmt.Sprintf(
		"%s completed in %s\n"+
			"Rows read: %d, written: %d, skipped: %d\n"+
			"Records scanned: %d, departments: %d\n"+
			"Throughput: %.2f items/sec",
		r.Operation,
		r.Duration,
		r.RowsRead, r.RowsWritten, r.RowsSkipped,
		r.RecordsScanned, r.Departments,
		r.Throughput,
	)
}
