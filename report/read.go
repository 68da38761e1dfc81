package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"slices"
	"strconv"

	"github.com/gurre/s3streamer"
)

// ReadSummary streams a stored summary back line by line and parses its rows.
// Department names containing line breaks are not supported.
func ReadSummary(ctx context.Context, streamer s3streamer.Streamer, bucket, key string) ([]DepartmentSummary, error) {
	var (
		summaries []DepartmentSummary
		header    bool
	)

	err := streamer.Stream(ctx, bucket, key, 0, func(line []byte, offset int64) error {
		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			return nil
		}

		fields, err := csv.NewReader(bytes.NewReader(line)).Read()
		if err != nil {
			return fmt.Errorf("offset %d: %w", offset, err)
		}

		if !header {
			if !slices.Equal(fields, Header) {
				return fmt.Errorf("unexpected summary header %v", fields)
			}
			header = true
			return nil
		}

		s, err := parseSummary(fields)
		if err != nil {
			return fmt.Errorf("offset %d: %w", offset, err)
		}
		summaries = append(summaries, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}
	if !header {
		return nil, fmt.Errorf("s3://%s/%s is empty", bucket, key)
	}
	return summaries, nil
}

func parseSummary(fields []string) (DepartmentSummary, error) {
	if len(fields) != len(Header) {
		return DepartmentSummary{}, fmt.Errorf("expected %d fields, got %d", len(Header), len(fields))
	}

	count, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return DepartmentSummary{}, fmt.Errorf("invalid employee count %q", fields[1])
	}
	total, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return DepartmentSummary{}, fmt.Errorf("invalid total salary %q", fields[2])
	}
	avg, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return DepartmentSummary{}, fmt.Errorf("invalid average salary %q", fields[3])
	}

	return DepartmentSummary{
		Department:    fields[0],
		EmployeeCount: count,
		TotalSalary:   total,
		AverageSalary: avg,
	}, nil
}
