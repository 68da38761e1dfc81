package main

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gurre/employee-etl/employee"
)

func TestGenerateDecodes(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{Rows: 200, Malformed: 7}
	if err := generate(&buf, rand.New(rand.NewSource(42)), cfg); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	var records []employee.Record
	stats, err := employee.NewCSVDecoder(employee.SkipInvalid).Decode(&buf, func(rec employee.Record) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if stats.Rows != 200 || stats.Valid != 193 || len(stats.Skipped) != 7 {
		t.Errorf("unexpected stats %+v", stats)
	}
	for _, rec := range records {
		if rec.Salary < 30000 || rec.Salary > 200000 {
			t.Errorf("salary out of range: %+v", rec)
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := Config{Rows: 50, Malformed: 3, Departments: 2}

	var a, b bytes.Buffer
	if err := generate(&a, rand.New(rand.NewSource(7)), cfg); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if err := generate(&b, rand.New(rand.NewSource(7)), cfg); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("same seed produced different files")
	}
}

func TestGenerateLimitsDepartments(t *testing.T) {
	var buf bytes.Buffer
	if err := generate(&buf, rand.New(rand.NewSource(1)), Config{Rows: 100, Departments: 2}); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	seen := make(map[string]bool)
	_, err := employee.NewCSVDecoder(employee.AbortOnError).Decode(&buf, func(rec employee.Record) error {
		seen[rec.Department] = true
		return nil
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(seen) > 2 {
		t.Errorf("expected at most 2 departments, got %v", seen)
	}
}

func TestGenerateRejectsTooManyMalformed(t *testing.T) {
	if err := generate(&bytes.Buffer{}, rand.New(rand.NewSource(1)), Config{Rows: 2, Malformed: 3}); err == nil {
		t.Error("expected error")
	}
}

type mockTableAdmin struct {
	created *dynamodb.CreateTableInput
}

func (m *mockTableAdmin) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	m.created = params
	return &dynamodb.CreateTableOutput{}, nil
}

func (m *mockTableAdmin) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{}, nil
}

func TestCreateEmployeeTable(t *testing.T) {
	admin := &mockTableAdmin{}
	if err := createEmployeeTable(context.Background(), admin, "Employees"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	in := admin.created
	if *in.TableName != "Employees" || in.BillingMode != types.BillingModePayPerRequest {
		t.Errorf("unexpected table input %+v", in)
	}
	if len(in.KeySchema) != 1 || *in.KeySchema[0].AttributeName != employee.KeyAttribute || in.KeySchema[0].KeyType != types.KeyTypeHash {
		t.Errorf("expected employee_id hash key, got %+v", in.KeySchema)
	}
}
