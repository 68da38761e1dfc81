// Package main generates employee CSV files for exercising the pipeline.
// It can create the employee table, write files locally or upload them to
// the ingest bucket, and seed deliberately malformed rows.
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	etlaws "github.com/gurre/employee-etl/aws"
	"github.com/gurre/employee-etl/blob"
	"github.com/gurre/employee-etl/employee"
)

// TableAdmin defines the operations needed to prepare the employee table.
// The AWS DynamoDB client satisfies this interface.
type TableAdmin interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Compile-time check that dynamodb.Client satisfies TableAdmin
var _ TableAdmin = (*dynamodb.Client)(nil)

// Config holds the command-line configuration for the generator.
type Config struct {
	Rows        int
	Malformed   int
	Departments int
	Seed        int64
	Output      string // local path, "-" for stdout
	UploadURI   string // s3://bucket/key
	CreateTable string
}

var (
	firstNames  = []string{"Ann", "Bo", "Cy", "Dee", "Ed", "Flo", "Gus", "Hal", "Ida", "Jo", "Kim", "Lou"}
	lastNames   = []string{"Abbott", "Berg", "Chen", "Diaz", "Ek", "Frost", "Gray", "Holm", "Ito", "Joshi"}
	departments = []string{"Engineering", "Sales", "Operations", "Finance", "Legal", "Support", "Research, Development", "People"}
)

// generate writes a header and cfg.Rows data rows. cfg.Malformed of those
// rows, chosen by the seed, carry a salary that does not parse.
func generate(w io.Writer, r *rand.Rand, cfg Config) error {
	if cfg.Malformed > cfg.Rows {
		return fmt.Errorf("malformed rows (%d) exceed rows (%d)", cfg.Malformed, cfg.Rows)
	}
	depts := departments
	if cfg.Departments > 0 && cfg.Departments < len(departments) {
		depts = departments[:cfg.Departments]
	}

	bad := make(map[int]bool, cfg.Malformed)
	for _, i := range r.Perm(cfg.Rows)[:cfg.Malformed] {
		bad[i] = true
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(employee.Columns); err != nil {
		return err
	}
	for i := 0; i < cfg.Rows; i++ {
		salary := strconv.Itoa(30000 + r.Intn(170001))
		if bad[i] {
			salary = randomMalformedSalary(r)
		}
		row := []string{
			fmt.Sprintf("E%06d", i+1),
			firstNames[r.Intn(len(firstNames))] + " " + lastNames[r.Intn(len(lastNames))],
			depts[r.Intn(len(depts))],
			salary,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func randomMalformedSalary(r *rand.Rand) string {
	values := []string{"", "abc", "-100", "12.5", "1e6", "N/A"}
	return values[r.Intn(len(values))]
}

// createEmployeeTable creates an on-demand table keyed by employee_id.
func createEmployeeTable(ctx context.Context, client TableAdmin, tableName string) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(employee.KeyAttribute), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(employee.KeyAttribute), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}

func main() {
	cfg := Config{}

	flag.IntVar(&cfg.Rows, "rows", 100, "Number of employee rows")
	flag.IntVar(&cfg.Malformed, "malformed", 0, "Rows with an unparseable salary")
	flag.IntVar(&cfg.Departments, "departments", 0, "Limit the number of departments (0 = all)")
	flag.Int64Var(&cfg.Seed, "seed", 0, "Random seed (0 = time-based)")
	flag.StringVar(&cfg.Output, "out", "-", "Output file (- for stdout)")
	flag.StringVar(&cfg.UploadURI, "upload", "", "Upload the file to this S3 URI instead of writing it locally")
	flag.StringVar(&cfg.CreateTable, "create-table", "", "Create this employee table before generating")
	flag.Parse()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(seed))
	log.Printf("Using seed: %d", seed)

	var buf bytes.Buffer
	if err := generate(&buf, r, cfg); err != nil {
		log.Fatalf("Failed to generate rows: %v", err)
	}

	ctx := context.Background()
	if cfg.CreateTable != "" || cfg.UploadURI != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatalf("Unable to load SDK config: %v", err)
		}

		if cfg.CreateTable != "" {
			client := dynamodb.NewFromConfig(awsCfg)
			if err := createEmployeeTable(ctx, client, cfg.CreateTable); err != nil {
				log.Fatalf("Failed to create table: %v", err)
			}
			log.Printf("Waiting for table %s to become active...", cfg.CreateTable)
			waiter := dynamodb.NewTableExistsWaiter(client)
			if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
				TableName: aws.String(cfg.CreateTable),
			}, 300*time.Second); err != nil {
				log.Fatalf("Failed to wait for table: %v", err)
			}
		}

		if cfg.UploadURI != "" {
			loc, err := blob.ParseURI(cfg.UploadURI)
			if err != nil {
				log.Fatalf("Invalid upload URI: %v", err)
			}
			store := blob.NewS3Store(etlaws.NewS3Client(s3.NewFromConfig(awsCfg)))
			if err := store.Write(ctx, loc.Bucket, loc.Key, buf.Bytes(), "text/csv"); err != nil {
				log.Fatalf("Failed to upload: %v", err)
			}
			log.Printf("Uploaded %d rows (%d malformed) to %s", cfg.Rows, cfg.Malformed, loc)
			return
		}
	}

	if cfg.Output == "-" {
		os.Stdout.Write(buf.Bytes())
		return
	}
	if err := os.WriteFile(cfg.Output, buf.Bytes(), 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", cfg.Output, err)
	}
	log.Printf("Wrote %d rows (%d malformed) to %s", cfg.Rows, cfg.Malformed, cfg.Output)
}
