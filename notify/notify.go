// Package notify publishes pipeline notifications to SNS.
package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/gurre/employee-etl/aws"
)

// maxSubjectLength is the SNS limit for email subjects.
const maxSubjectLength = 100

// Notifier delivers a subject and message to a fixed channel.
type Notifier interface {
	Publish(ctx context.Context, subject, message string, attrs map[string]string) error
}

// SNSNotifier publishes to one SNS topic.
type SNSNotifier struct {
	client   aws.SNSClient
	topicARN string
}

// NewSNSNotifier creates a notifier for topicARN
func NewSNSNotifier(client aws.SNSClient, topicARN string) *SNSNotifier {
	return &SNSNotifier{client: client, topicARN: topicARN}
}

// Publish sends the message with attrs as String message attributes.
func (n *SNSNotifier) Publish(ctx context.Context, subject, message string, attrs map[string]string) error {
	subject = truncate(subject, maxSubjectLength)

	input := &sns.PublishInput{
		TopicArn: &n.topicARN,
		Subject:  &subject,
		Message:  &message,
	}

	if len(attrs) > 0 {
		input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(attrs))
		for _, name := range sortedKeys(attrs) {
			value := attrs[name]
			input.MessageAttributes[name] = types.MessageAttributeValue{
				DataType:    stringPtr("String"),
				StringValue: &value,
			}
		}
	}

	out, err := n.client.Publish(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", n.topicARN, err)
	}
	if out.MessageId == nil {
		return fmt.Errorf("publish to %s returned no message id", n.topicARN)
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringPtr(s string) *string { return &s }

// Message is one delivered notification.
type Message struct {
	Subject string
	Body    string
	Attrs   map[string]string
}

// MemoryNotifier records messages instead of sending them.
// It's primarily intended for testing purposes.
type MemoryNotifier struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

// NewMemoryNotifier creates a new MemoryNotifier instance
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

// FailWith makes every later Publish return err
func (n *MemoryNotifier) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// Publish records the message
func (n *MemoryNotifier) Publish(ctx context.Context, subject, message string, attrs map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, Message{Subject: subject, Body: message, Attrs: attrs})
	return nil
}

// Messages returns the recorded messages
func (n *MemoryNotifier) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.messages...)
}
