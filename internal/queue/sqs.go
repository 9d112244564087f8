package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"golang.org/x/sync/errgroup"

	"github.com/acme/crm-telephony-sync/internal/config"
)

// maxBatchSize is the SQS SendMessageBatch cap. It is also the unit the Durable
// Queue Client buffers submissions into.
const maxBatchSize = 10

// maxDelaySeconds is the SQS SendMessage per-message delay ceiling.
const maxDelaySeconds = 900

// Client wraps an SQS client and exposes the Durable Queue Client contract:
// at-least-once enqueue with optional per-message delay and batch submission
// capped at 10 messages. It performs no redelivery or retry of its own; errors
// propagate to the caller.
type Client struct {
	sqs *sqs.Client
	cfg config.SQSConfig
}

// NewClient constructs a Client from the AWS SDK's default credential chain.
func NewClient(ctx context.Context, cfg config.SQSConfig) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("queue: load aws config: %w", err)
	}

	var client *sqs.Client
	if cfg.EndpointURL != "" {
		client = sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			o.BaseEndpoint = &cfg.EndpointURL
		})
	} else {
		client = sqs.NewFromConfig(awsCfg)
	}

	return &Client{sqs: client, cfg: cfg}, nil
}

// Message is one outbound item: an event-tagged payload plus an optional
// per-message delivery delay.
type Message struct {
	Event   Event
	Body    any
	Delay   *time.Duration
}

// Send issues a single SendMessage call.
func (c *Client) Send(ctx context.Context, queueURL string, msg Message) error {
	body, err := encodeBody(msg.Event, msg.Body)
	if err != nil {
		return err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    &queueURL,
		MessageBody: &body,
	}
	if msg.Delay != nil {
		delay, err := clampDelaySeconds(*msg.Delay)
		if err != nil {
			return err
		}
		input.DelaySeconds = delay
	}

	if _, err := c.sqs.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: send message: %w", err)
	}
	return nil
}

// BatchSend flushes messages in groups of 10, issuing each group's
// SendMessageBatch concurrently, bounded by maxConcurrentFlush. On failure of
// any batch, the error propagates immediately without retry; the caller
// decides whether to redrive.
func (c *Client) BatchSend(ctx context.Context, queueURL string, messages []Message, maxConcurrentFlush int) error {
	if len(messages) == 0 {
		return nil
	}
	if maxConcurrentFlush <= 0 {
		maxConcurrentFlush = 1
	}

	chunks := chunkMessages(messages, maxBatchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFlush)

	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			return c.sendBatch(gctx, queueURL, chunk)
		})
	}

	return g.Wait()
}

func (c *Client) sendBatch(ctx context.Context, queueURL string, chunk []Message) error {
	entries := make([]types.SendMessageBatchRequestEntry, 0, len(chunk))
	for i, m := range chunk {
		body, err := encodeBody(m.Event, m.Body)
		if err != nil {
			return err
		}
		id := fmt.Sprintf("m%d", i)
		entry := types.SendMessageBatchRequestEntry{
			Id:          &id,
			MessageBody: &body,
		}
		if m.Delay != nil {
			delay, err := clampDelaySeconds(*m.Delay)
			if err != nil {
				return err
			}
			entry.DelaySeconds = delay
		}
		entries = append(entries, entry)
	}

	out, err := c.sqs.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
		QueueUrl: &queueURL,
		Entries:  entries,
	})
	if err != nil {
		return fmt.Errorf("queue: send message batch: %w", err)
	}
	if len(out.Failed) > 0 {
		return fmt.Errorf("queue: %d of %d messages in batch failed, first: %s", len(out.Failed), len(entries), failureSummary(out.Failed[0]))
	}
	return nil
}

func failureSummary(f types.BatchResultErrorEntry) string {
	id, code, msg := "", "", ""
	if f.Id != nil {
		id = *f.Id
	}
	if f.Code != nil {
		code = *f.Code
	}
	if f.Message != nil {
		msg = *f.Message
	}
	return fmt.Sprintf("id=%s code=%s message=%s", id, code, msg)
}

func encodeBody(event Event, payload any) (string, error) {
	wire := struct {
		Event Event `json:"event"`
		Data  any   `json:"data"`
	}{Event: event, Data: payload}

	b, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("queue: marshal message: %w", err)
	}
	return string(b), nil
}

// DecodeEvent reads just the discriminant off a raw message body.
func DecodeEvent(body string) (Event, error) {
	var wire struct {
		Event Event `json:"event"`
	}
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return "", fmt.Errorf("queue: decode event: %w", err)
	}
	return wire.Event, nil
}

// DecodeData unmarshals the `data` field of a raw message body into dst.
func DecodeData(body string, dst any) error {
	var wire struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return fmt.Errorf("queue: decode envelope: %w", err)
	}
	if err := json.Unmarshal(wire.Data, dst); err != nil {
		return fmt.Errorf("queue: decode data: %w", err)
	}
	return nil
}

func clampDelaySeconds(d time.Duration) (int32, error) {
	seconds := int32(d / time.Second)
	if seconds < 0 || seconds > maxDelaySeconds {
		return 0, fmt.Errorf("queue: delaySeconds %d out of range [0,%d]", seconds, maxDelaySeconds)
	}
	return seconds, nil
}

func chunkMessages(messages []Message, size int) [][]Message {
	chunks := make([][]Message, 0, (len(messages)+size-1)/size)
	for size < len(messages) {
		messages, chunks = messages[size:], append(chunks, messages[0:size:size])
	}
	return append(chunks, messages)
}
