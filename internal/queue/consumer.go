package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"cv-assistant/internal/shared/metrics"
	"cv-assistant/internal/shared/telemetry"
)

const (
	defaultConcurrency     = 4
	defaultVisibility      = 2 * time.Minute
	defaultShutdownTimeout = 30 * time.Second
	receiveWaitSeconds     = 20
	receiveBatchSize       = 10
	receiveCountAttribute  = "ApproximateReceiveCount"
)

// ReceiveAPI is the subset of the SQS client a Consumer needs.
type ReceiveAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// HandlerFunc processes one decoded message. A returned error leaves the
// message on the queue for redelivery.
type HandlerFunc func(ctx context.Context, msg Message) error

// ConsumerOptions tunes the poll loop.
type ConsumerOptions struct {
	Concurrency     int
	Visibility      time.Duration
	ShutdownTimeout time.Duration
}

// Consumer long-polls an SQS queue and hands each message to a handler.
type Consumer struct {
	client   ReceiveAPI
	queueURL string
	opts     ConsumerOptions
}

// NewSQSConsumer builds a consumer from the default AWS credential chain.
func NewSQSConsumer(ctx context.Context, queueURL, region string, opts ConsumerOptions) (*Consumer, error) {
	region = strings.TrimSpace(region)
	if region == "" {
		region = defaultRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewConsumer(sqs.NewFromConfig(cfg), queueURL, opts)
}

// NewConsumer wraps an existing SQS API.
func NewConsumer(client ReceiveAPI, queueURL string, opts ConsumerOptions) (*Consumer, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, fmt.Errorf("SUBMISSIONS_SQS_QUEUE_URL is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Visibility <= 0 {
		opts.Visibility = defaultVisibility
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Consumer{client: client, queueURL: queueURL, opts: opts}, nil
}

// Run polls until ctx is done, then waits up to the shutdown timeout for
// in-flight messages.
func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	sem := make(chan struct{}, c.opts.Concurrency)
	var wg sync.WaitGroup

	telemetry.Info("worker.started", map[string]any{
		"queue_url":   c.queueURL,
		"concurrency": c.opts.Concurrency,
		"visibility":  c.opts.Visibility.String(),
	})

poll:
	for ctx.Err() == nil {
		resp, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:                    aws.String(c.queueURL),
			MaxNumberOfMessages:         receiveBatchSize,
			WaitTimeSeconds:             receiveWaitSeconds,
			VisibilityTimeout:           int32(c.opts.Visibility / time.Second),
			MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{sqstypes.MessageSystemAttributeNameApproximateReceiveCount},
		})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				break
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err.Error()})
			continue
		}

		for _, m := range resp.Messages {
			select {
			case <-ctx.Done():
				break poll
			case sem <- struct{}{}:
			}
			metrics.IncSubmissionJobReceived()
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				c.handleMessage(ctx, handle, m)
			}(m)
		}
	}

	telemetry.Info("worker.draining", map[string]any{"timeout": c.opts.ShutdownTimeout.String()})
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(c.opts.ShutdownTimeout):
		return fmt.Errorf("shutdown timeout reached with messages in flight")
	}
}

func (c *Consumer) handleMessage(ctx context.Context, handle HandlerFunc, m sqstypes.Message) {
	fields := messageFields(m)
	msg, err := DecodeMessage([]byte(aws.ToString(m.Body)))
	if err == nil && strings.TrimSpace(msg.WorkspaceID) == "" {
		err = errors.New("missing workspace id")
	}
	if err != nil {
		fields["error"] = err.Error()
		telemetry.Error("worker.decode_failed", fields)
		if c.delete(ctx, m) {
			metrics.IncSubmissionJobDropped()
		}
		return
	}

	fields["workspace_id"] = msg.WorkspaceID
	fields["record_name"] = msg.RecordName
	if msg.RequestID != "" {
		fields["request_id"] = msg.RequestID
	}

	// Handlers outlive a shutdown signal so the message is either finished
	// or left for redelivery.
	if err := handle(context.WithoutCancel(ctx), msg); err != nil {
		fields["error"] = err.Error()
		telemetry.Error("worker.handle_failed", fields)
		metrics.IncSubmissionJobFailed()
		return
	}
	if c.delete(context.WithoutCancel(ctx), m) {
		telemetry.Info("worker.completed", fields)
		metrics.IncSubmissionJobCompleted()
	}
}

func (c *Consumer) delete(ctx context.Context, m sqstypes.Message) bool {
	receipt := aws.ToString(m.ReceiptHandle)
	if receipt == "" {
		telemetry.Error("worker.delete_failed", map[string]any{"sqs_message_id": aws.ToString(m.MessageId), "error": "missing receipt handle"})
		return false
	}
	if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		telemetry.Error("worker.delete_failed", map[string]any{"sqs_message_id": aws.ToString(m.MessageId), "error": err.Error()})
		return false
	}
	return true
}

func messageFields(m sqstypes.Message) map[string]any {
	count := 0
	if raw := m.Attributes[receiveCountAttribute]; raw != "" {
		count, _ = strconv.Atoi(raw)
	}
	return map[string]any{
		"sqs_message_id": aws.ToString(m.MessageId),
		"receive_count":  count,
	}
}
