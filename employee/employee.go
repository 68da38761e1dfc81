// Package employee decodes uploaded CSV rows into employee records and maps
// records to and from DynamoDB items.
package employee

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names in the employee table. KeyAttribute is the partition key.
const (
	KeyAttribute        = "employee_id"
	NameAttribute       = "name"
	DepartmentAttribute = "department"
	SalaryAttribute     = "salary"
)

// Record is one employee row as stored in the table.
type Record struct {
	EmployeeID string `dynamodbav:"employee_id"`
	Name       string `dynamodbav:"name"`
	Department string `dynamodbav:"department"`
	Salary     int64  `dynamodbav:"salary"`
}

// ErrMalformedItem is returned when a table item lacks an attribute the
// report needs or holds one of the wrong type.
var ErrMalformedItem = errors.New("malformed item")

// ToItem converts a record into a DynamoDB item.
func ToItem(r Record) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal employee %s: %w", r.EmployeeID, err)
	}
	return item, nil
}

// FromItem converts a DynamoDB item into a record. The key, department and
// salary must be present; name is optional since the report ignores it.
func FromItem(item map[string]types.AttributeValue) (Record, error) {
	for _, attr := range []string{KeyAttribute, DepartmentAttribute, SalaryAttribute} {
		if _, ok := item[attr]; !ok {
			return Record{}, fmt.Errorf("%w: missing attribute %s", ErrMalformedItem, attr)
		}
	}

	var r Record
	if err := attributevalue.UnmarshalMap(item, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedItem, err)
	}
	return r, nil
}
