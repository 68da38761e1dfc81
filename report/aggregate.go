// Package report aggregates the employee table per department and publishes
// the daily summary CSV.
package report

import (
	"fmt"
	"iter"
	"math"
	"math/big"
	"sort"

	"github.com/gurre/employee-etl/employee"
)

// Order selects the row order of the summary.
type Order int

const (
	OrderByName    Order = iota // Sorted by department name
	OrderFirstSeen              // Order in which the scan first met each department
)

// ParseOrder maps a configuration value to an Order.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "name":
		return OrderByName, nil
	case "first-seen":
		return OrderFirstSeen, nil
	default:
		return OrderByName, fmt.Errorf("unknown report order %q", s)
	}
}

// DepartmentSummary is one aggregate row. EmployeeCount is always at least 1.
type DepartmentSummary struct {
	Department    string  `json:"department"`
	EmployeeCount int64   `json:"employeeCount"`
	TotalSalary   int64   `json:"totalSalary"`
	AverageSalary float64 `json:"averageSalary"`
}

// Aggregate groups records by exact department string in a single pass.
// Counts and totals are integers; AverageSalary is derived at the end. The
// first error from the sequence stops aggregation and is returned.
func Aggregate(records iter.Seq2[employee.Record, error], order Order) ([]DepartmentSummary, error) {
	index := make(map[string]int)
	var groups []DepartmentSummary

	for rec, err := range records {
		if err != nil {
			return nil, err
		}
		if rec.Salary < 0 {
			return nil, fmt.Errorf("%w: employee %s has negative salary %d",
				employee.ErrMalformedItem, rec.EmployeeID, rec.Salary)
		}

		i, ok := index[rec.Department]
		if !ok {
			i = len(groups)
			index[rec.Department] = i
			groups = append(groups, DepartmentSummary{Department: rec.Department})
		}

		g := &groups[i]
		if g.TotalSalary > math.MaxInt64-rec.Salary {
			return nil, fmt.Errorf("total salary of department %q overflows", rec.Department)
		}
		g.EmployeeCount++
		g.TotalSalary += rec.Salary
	}

	for i := range groups {
		groups[i].AverageSalary = float64(groups[i].TotalSalary) / float64(groups[i].EmployeeCount)
	}

	if order == OrderByName {
		sort.Slice(groups, func(a, b int) bool {
			return groups[a].Department < groups[b].Department
		})
	}

	return groups, nil
}

var (
	bigOne     = big.NewInt(1)
	bigTwo     = big.NewInt(2)
	bigHundred = big.NewInt(100)
)

// FormatAverage renders total/count rounded half-to-even to two decimals,
// keeping at least one fractional digit: 150.0, 12.5, 33.33.
// The quotient is computed exactly, so large totals do not drift.
func FormatAverage(total, count int64) string {
	if count <= 0 {
		return "0.0"
	}

	num := new(big.Int).Mul(big.NewInt(total), bigHundred)
	den := big.NewInt(count)
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))

	switch new(big.Int).Mul(r.Abs(r), bigTwo).Cmp(den) {
	case 1:
		q.Add(q, bigOne)
	case 0:
		if q.Bit(0) == 1 {
			q.Add(q, bigOne)
		}
	}

	whole, frac := new(big.Int).QuoRem(q, bigHundred, new(big.Int))
	f := frac.Int64()
	switch {
	case f == 0:
		return whole.String() + ".0"
	case f%10 == 0:
		return fmt.Sprintf("%s.%d", whole.String(), f/10)
	default:
		return fmt.Sprintf("%s.%02d", whole.String(), f)
	}
}
