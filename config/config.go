// Package config loads the pipeline configuration from the environment.
// Every recognized variable has a documented fallback so a function can start
// with nothing set, although the placeholders are not usable in production.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Recognized environment variables.
const (
	EnvTableName    = "TABLE_NAME"
	EnvReportBucket = "REPORT_BUCKET"
	EnvTopicARN     = "SNS_TOPIC_ARN"
	EnvRegion       = "AWS_REGION"
	EnvRowPolicy    = "ROW_POLICY"
	EnvReportOrder  = "REPORT_ORDER"
	EnvBatchSize    = "BATCH_SIZE"
	EnvScanPageSize = "SCAN_PAGE_SIZE"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
)

// Fallback values used when a variable is unset or empty.
const (
	DefaultTableName    = "Employees"
	DefaultReportBucket = "employee-summary-reports-bucket"
	DefaultTopicARN     = "SNS_TOPIC_ARN_PLACEHOLDER"
	DefaultRegion       = "us-east-1"
	DefaultRowPolicy    = "abort"
	DefaultReportOrder  = "name"
	DefaultBatchSize    = 25
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
)

// Config holds the settings shared by the ingest and report invocations.
type Config struct {
	TableName    string // DynamoDB table holding employee records
	ReportBucket string // Bucket receiving daily_summary_<date>.csv
	TopicARN     string // SNS topic notified after each report
	Region       string // AWS region for all clients
	RowPolicy    string // "abort"|"skip" - handling of malformed CSV rows
	ReportOrder  string // "name"|"first-seen" - department row order
	BatchSize    int    // Items per BatchWriteItem call (≤25)
	ScanPageSize int    // Scan page limit, 0 leaves it to DynamoDB
	LogLevel     string // "debug"|"info"|"warn"|"error"
	LogFormat    string // "json"|"text"

	parseErrs []error // variables Load could not parse
}

// Load reads the environment once and applies fallbacks. The result still
// needs Validate, since a set variable may hold an unusable value.
func Load() *Config {
	c := &Config{
		TableName:    envStr(EnvTableName, DefaultTableName),
		ReportBucket: envStr(EnvReportBucket, DefaultReportBucket),
		TopicARN:     envStr(EnvTopicARN, DefaultTopicARN),
		Region:       envStr(EnvRegion, DefaultRegion),
		RowPolicy:    strings.ToLower(envStr(EnvRowPolicy, DefaultRowPolicy)),
		ReportOrder:  strings.ToLower(envStr(EnvReportOrder, DefaultReportOrder)),
		LogLevel:     strings.ToLower(envStr(EnvLogLevel, DefaultLogLevel)),
		LogFormat:    strings.ToLower(envStr(EnvLogFormat, DefaultLogFormat)),
	}
	c.BatchSize = c.envInt(EnvBatchSize, DefaultBatchSize)
	c.ScanPageSize = c.envInt(EnvScanPageSize, 0)
	return c
}

// Validate ensures all fields hold usable values.
func (c *Config) Validate() error {
	if len(c.parseErrs) > 0 {
		return errors.Join(c.parseErrs...)
	}

	if c.TableName == "" {
		return fmt.Errorf("table name is required")
	}

	if c.ReportBucket == "" {
		return fmt.Errorf("report bucket is required")
	}
	if strings.Contains(c.ReportBucket, "/") {
		return fmt.Errorf("report bucket must be a bucket name, not a path")
	}

	if c.TopicARN == "" {
		return fmt.Errorf("notification topic is required")
	}

	if c.Region == "" {
		return fmt.Errorf("region is required")
	}

	if c.RowPolicy != "abort" && c.RowPolicy != "skip" {
		return fmt.Errorf("row policy must be abort or skip")
	}

	if c.ReportOrder != "name" && c.ReportOrder != "first-seen" {
		return fmt.Errorf("report order must be name or first-seen")
	}

	if c.BatchSize < 1 || c.BatchSize > 25 {
		return fmt.Errorf("batch size must be between 1 and 25")
	}

	if c.ScanPageSize < 0 {
		return fmt.Errorf("scan page size must not be negative")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be debug, info, warn or error")
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("log format must be json or text")
	}

	return nil
}

// UsesPlaceholders reports whether a fallback placeholder is still in effect
// for a setting that has no meaningful default.
func (c *Config) UsesPlaceholders() bool {
	return c.TopicARN == DefaultTopicARN
}

func envStr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// envInt keeps the fallback when the variable does not parse and records the
// failure for Validate.
func (c *Config) envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.parseErrs = append(c.parseErrs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return fallback
	}
	return n
}
