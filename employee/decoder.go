package employee

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Columns lists the header names every input file must carry.
var Columns = []string{KeyAttribute, NameAttribute, DepartmentAttribute, SalaryAttribute}

// ErrMalformedRow is returned when a row cannot be turned into a record: a
// required column is missing or the salary is not a non-negative integer.
var ErrMalformedRow = errors.New("malformed row")

// RowPolicy controls what happens when a row is malformed.
type RowPolicy int

const (
	AbortOnError RowPolicy = iota // Stop at the first malformed row
	SkipInvalid                   // Record the row error and continue
)

// ParseRowPolicy maps a configuration value to a RowPolicy.
func ParseRowPolicy(s string) (RowPolicy, error) {
	switch s {
	case "abort":
		return AbortOnError, nil
	case "skip":
		return SkipInvalid, nil
	default:
		return AbortOnError, fmt.Errorf("unknown row policy %q", s)
	}
}

func (p RowPolicy) String() string {
	if p == SkipInvalid {
		return "skip"
	}
	return "abort"
}

// RowError describes a skipped row. Line is the 1-based line in the file.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedRow.
func (e RowError) Unwrap() error {
	return ErrMalformedRow
}

// Stats summarizes one decode pass.
type Stats struct {
	Rows    int        // Data rows seen, valid or not
	Valid   int        // Rows handed to the callback
	Skipped []RowError // Rows dropped under SkipInvalid
}

// Decoder turns CSV content into records.
type Decoder interface {
	Decode(r io.Reader, fn func(Record) error) (Stats, error)
}

// CSVDecoder decodes comma-separated input with a header row.
type CSVDecoder struct {
	policy RowPolicy
}

// NewCSVDecoder creates a decoder applying the given row policy
func NewCSVDecoder(policy RowPolicy) *CSVDecoder {
	return &CSVDecoder{policy: policy}
}

// Decode reads the header, then calls fn for every valid row in file order.
// An empty input yields zero rows. Structural CSV errors (unbalanced quotes)
// abort regardless of policy because later rows cannot be trusted. An error
// returned by fn stops decoding and is returned as is.
func (d *CSVDecoder) Decode(r io.Reader, fn func(Record) error) (Stats, error) {
	var stats Stats

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("%w: header: %v", ErrMalformedRow, err)
	}

	index, err := columnIndex(header)
	if err != nil {
		return stats, err
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("%w: %v", ErrMalformedRow, err)
		}
		stats.Rows++

		line, _ := cr.FieldPos(0)
		rec, reason := parseRow(row, index)
		if reason != "" {
			rowErr := RowError{Line: line, Reason: reason}
			if d.policy == AbortOnError {
				return stats, fmt.Errorf("%w: %s", ErrMalformedRow, rowErr.Error())
			}
			stats.Skipped = append(stats.Skipped, rowErr)
			continue
		}

		if err := fn(rec); err != nil {
			return stats, err
		}
		stats.Valid++
	}

	return stats, nil
}

// columnIndex maps each required column to its position in the header.
func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\uFEFF")
		}
		name = strings.TrimSpace(name)
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range Columns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: header missing columns %s", ErrMalformedRow, strings.Join(missing, ", "))
	}
	return index, nil
}

// parseRow validates one row. It returns a non-empty reason when the row is
// malformed.
func parseRow(row []string, index map[string]int) (Record, string) {
	field := func(col string) (string, bool) {
		i := index[col]
		if i >= len(row) {
			return "", false
		}
		return row[i], true
	}

	id, ok := field(KeyAttribute)
	if !ok {
		return Record{}, "missing column " + KeyAttribute
	}
	if strings.TrimSpace(id) == "" {
		return Record{}, "empty " + KeyAttribute
	}
	name, ok := field(NameAttribute)
	if !ok {
		return Record{}, "missing column " + NameAttribute
	}
	dept, ok := field(DepartmentAttribute)
	if !ok {
		return Record{}, "missing column " + DepartmentAttribute
	}
	raw, ok := field(SalaryAttribute)
	if !ok {
		return Record{}, "missing column " + SalaryAttribute
	}

	for _, col := range Columns {
		if v, _ := field(col); !utf8.ValidString(v) {
			return Record{}, col + " is not valid UTF-8"
		}
	}

	salary, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return Record{}, fmt.Sprintf("salary %q is not an integer", raw)
	}
	if salary < 0 {
		return Record{}, fmt.Sprintf("salary %d is negative", salary)
	}

	return Record{
		EmployeeID: id,
		Name:       name,
		Department: dept,
		Salary:     salary,
	}, ""
}
