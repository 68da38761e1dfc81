package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gurre/employee-etl/blob"
	"github.com/gurre/employee-etl/trigger"
)

func TestIngestEventFromURI(t *testing.T) {
	event, err := ingestEvent("s3://uploads/2024/new hires+q2.csv", "")
	if err != nil {
		t.Fatalf("ingestEvent failed: %v", err)
	}

	locs, err := trigger.Locations(event)
	if err != nil {
		t.Fatalf("locations failed: %v", err)
	}
	want := blob.Location{Bucket: "uploads", Key: "2024/new hires+q2.csv"}
	if len(locs) != 1 || locs[0] != want {
		t.Errorf("expected %v, got %v", want, locs)
	}
}

func TestIngestEventFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event.json")
	body := `{"Records":[{"s3":{"bucket":{"name":"uploads"},"object":{"key":"a.csv"}}},` +
		`{"s3":{"bucket":{"name":"uploads"},"object":{"key":"b.csv"}}}]}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write event: %v", err)
	}

	event, err := ingestEvent("", path)
	if err != nil {
		t.Fatalf("ingestEvent failed: %v", err)
	}
	if len(event.Records) != 2 || event.Records[1].S3.Object.Key != "b.csv" {
		t.Errorf("unexpected event %+v", event)
	}
}

func TestIngestEventErrors(t *testing.T) {
	testCases := []struct {
		name, uri, file string
	}{
		{"neither", "", ""},
		{"both", "s3://b/k", "event.json"},
		{"bad uri", "https://b/k", ""},
		{"missing file", "", filepath.Join(t.TempDir(), "absent.json")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ingestEvent(tc.uri, tc.file); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2024-05-01")
	if err != nil || !got.Equal(time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %v: %v", got, err)
	}
	if _, err := parseDate("05/01/2024"); err == nil {
		t.Error("expected error for non-ISO date")
	}
	if now, err := parseDate(""); err != nil || now.Location() != time.UTC {
		t.Errorf("expected UTC now, got %v: %v", now, err)
	}
}

func TestRunRejectsBadInvocations(t *testing.T) {
	var out bytes.Buffer
	if err := run(nil, &out); err == nil {
		t.Error("expected error without command")
	}
	if err := run([]string{"restore"}, &out); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("expected unknown command error, got %v", err)
	}
	if err := run([]string{"report", "-date", "yesterday"}, &out); err == nil {
		t.Error("expected invalid date error")
	}
}

func TestPrintJSON(t *testing.T) {
	var out bytes.Buffer
	if err := printJSON(&out, map[string]int{"rows": 3}); err != nil {
		t.Fatalf("printJSON failed: %v", err)
	}
	if out.String() != "{\n  \"rows\": 3\n}\n" {
		t.Errorf("unexpected output %q", out.String())
	}
}
