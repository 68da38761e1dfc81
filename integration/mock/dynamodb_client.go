package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBClient is a mock implementation of aws.DynamoDBClient for testing.
// Items are stored per table under the string value of their partition key
// attribute, and scans return them in key order.
type DynamoDBClient struct {
	// Thread-safe map of table data: tableName -> partition key -> attributes
	tableData       map[string]map[string]map[string]types.AttributeValue
	keyAttribute    string
	mu              sync.RWMutex
	batchWrites     []dynamodb.BatchWriteItemInput
	scans           []dynamodb.ScanInput
	failNextWrite   bool
	failNextScan    bool
	unprocessedNext int
}

// NewDynamoDBClient creates a new mock DynamoDB client whose tables are keyed
// by keyAttribute.
func NewDynamoDBClient(keyAttribute string) *DynamoDBClient {
	return &DynamoDBClient{
		tableData:    make(map[string]map[string]map[string]types.AttributeValue),
		keyAttribute: keyAttribute,
	}
}

// attributeToString converts an AttributeValue to a string for key generation
func attributeToString(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	default:
		return ""
	}
}

// SetFailNextWrite configures the client to fail the next batch write
func (m *DynamoDBClient) SetFailNextWrite(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextWrite = fail
}

// SetFailNextScan configures the client to fail the next scan page
func (m *DynamoDBClient) SetFailNextScan(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextScan = fail
}

// SetUnprocessedNext makes the next batch write leave its last n requests
// unprocessed, as DynamoDB does under load.
func (m *DynamoDBClient) SetUnprocessedNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unprocessedNext = n
}

// BatchWriteItem implements the DynamoDBClient interface for batch writing items.
func (m *DynamoDBClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batchWrites = append(m.batchWrites, *params)

	if m.failNextWrite {
		m.failNextWrite = false
		return nil, fmt.Errorf("simulated batch write failure")
	}

	unprocessed := make(map[string][]types.WriteRequest)
	for tableName, writeRequests := range params.RequestItems {
		if len(writeRequests) > 25 {
			return nil, fmt.Errorf("too many items requested for the BatchWriteItem call")
		}
		if _, exists := m.tableData[tableName]; !exists {
			m.tableData[tableName] = make(map[string]map[string]types.AttributeValue)
		}

		seen := make(map[string]bool, len(writeRequests))
		for _, writeRequest := range writeRequests {
			var key string
			if writeRequest.PutRequest != nil {
				key = attributeToString(writeRequest.PutRequest.Item[m.keyAttribute])
			}
			if writeRequest.DeleteRequest != nil {
				key = attributeToString(writeRequest.DeleteRequest.Key[m.keyAttribute])
			}
			if key == "" {
				return nil, fmt.Errorf("missing key attribute %s", m.keyAttribute)
			}
			if seen[key] {
				return nil, fmt.Errorf("provided list of item keys contains duplicates")
			}
			seen[key] = true
		}

		applied := writeRequests
		if m.unprocessedNext > 0 {
			n := min(m.unprocessedNext, len(writeRequests))
			applied = writeRequests[:len(writeRequests)-n]
			unprocessed[tableName] = writeRequests[len(writeRequests)-n:]
			m.unprocessedNext = 0
		}

		for _, writeRequest := range applied {
			if writeRequest.PutRequest != nil {
				item := writeRequest.PutRequest.Item
				m.tableData[tableName][attributeToString(item[m.keyAttribute])] = item
			}
			if writeRequest.DeleteRequest != nil {
				delete(m.tableData[tableName], attributeToString(writeRequest.DeleteRequest.Key[m.keyAttribute]))
			}
		}
	}

	return &dynamodb.BatchWriteItemOutput{UnprocessedItems: unprocessed}, nil
}

// Scan implements the DynamoDBClient interface. Pages hold at most Limit
// items and continue after ExclusiveStartKey.
func (m *DynamoDBClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scans = append(m.scans, *params)

	if m.failNextScan {
		m.failNextScan = false
		return nil, fmt.Errorf("simulated scan failure")
	}

	data := m.tableData[*params.TableName]
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if params.ExclusiveStartKey != nil {
		after := attributeToString(params.ExclusiveStartKey[m.keyAttribute])
		start = sort.SearchStrings(keys, after)
		if start < len(keys) && keys[start] == after {
			start++
		}
	}

	end := len(keys)
	if params.Limit != nil && int(*params.Limit) < end-start {
		end = start + int(*params.Limit)
	}

	out := &dynamodb.ScanOutput{}
	for _, k := range keys[start:end] {
		out.Items = append(out.Items, data[k])
	}
	out.Count = int32(len(out.Items))
	out.ScannedCount = out.Count
	if end < len(keys) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			m.keyAttribute: data[keys[end-1]][m.keyAttribute],
		}
	}
	return out, nil
}

// PutItem stores an item directly, bypassing batch accounting.
func (m *DynamoDBClient) PutItem(tableName string, item map[string]types.AttributeValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tableData[tableName]; !exists {
		m.tableData[tableName] = make(map[string]map[string]types.AttributeValue)
	}
	m.tableData[tableName][attributeToString(item[m.keyAttribute])] = item
}

// GetItem returns the item stored under key, or nil.
func (m *DynamoDBClient) GetItem(tableName, key string) map[string]types.AttributeValue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tableData[tableName][key]
}

// Count returns the number of items in a table
func (m *DynamoDBClient) Count(tableName string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tableData[tableName])
}

// GetBatchWrites returns the batch write requests that were made
func (m *DynamoDBClient) GetBatchWrites() []dynamodb.BatchWriteItemInput {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]dynamodb.BatchWriteItemInput(nil), m.batchWrites...)
}

// GetScans returns the scan requests that were made
func (m *DynamoDBClient) GetScans() []dynamodb.ScanInput {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]dynamodb.ScanInput(nil), m.scans...)
}

// ClearHistory clears the history of operations
func (m *DynamoDBClient) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchWrites = nil
	m.scans = nil
}
