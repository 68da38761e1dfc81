package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Header is the first row of every summary file.
var Header = []string{"Department", "EmployeeCount", "TotalSalary", "AverageSalary"}

// KeyFor names the summary generated at t.
func KeyFor(t time.Time) string {
	return "daily_summary_" + t.Format(time.DateOnly) + ".csv"
}

// WriteCSV writes the header followed by one row per summary, in slice order.
func WriteCSV(w io.Writer, summaries []DepartmentSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, s := range summaries {
		row := []string{
			s.Department,
			strconv.FormatInt(s.EmployeeCount, 10),
			strconv.FormatInt(s.TotalSalary, 10),
			FormatAverage(s.TotalSalary, s.EmployeeCount),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %q: %w", s.Department, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
