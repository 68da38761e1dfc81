package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSClient is a mock implementation of aws.SNSClient that records every
// published message.
type SNSClient struct {
	mu          sync.Mutex
	published   []sns.PublishInput
	failNext    bool
	idGenerator int
}

// NewSNSClient creates a new mock SNS client
func NewSNSClient() *SNSClient {
	return &SNSClient{}
}

// SetFailNextPublish configures the client to fail the next Publish
func (m *SNSClient) SetFailNextPublish(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = fail
}

// Publish implements the SNSClient interface
func (m *SNSClient) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext {
		m.failNext = false
		return nil, fmt.Errorf("simulated publish failure")
	}

	m.published = append(m.published, *params)
	m.idGenerator++
	return &sns.PublishOutput{MessageId: aws.String(fmt.Sprintf("msg-%d", m.idGenerator))}, nil
}

// GetPublished returns the published messages
func (m *SNSClient) GetPublished() []sns.PublishInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sns.PublishInput(nil), m.published...)
}
