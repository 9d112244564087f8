package queue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// ReceivedMessage is one dequeued item, carrying enough to delete it and to
// read the queue's own redelivery counter (SQS ApproximateReceiveCount).
type ReceivedMessage struct {
	ReceiptHandle     string
	Body              string
	ApproximateReceiveCount int
}

// Receive long-polls the queue for up to maxMessages messages.
func (c *Client) Receive(ctx context.Context, queueURL string, maxMessages int32, waitSeconds int32, visibilityTimeout int32) ([]ReceivedMessage, error) {
	out, err := c.sqs.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &queueURL,
		MaxNumberOfMessages: maxMessages,
		WaitTimeSeconds:     waitSeconds,
		VisibilityTimeout:   visibilityTimeout,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("queue: receive: %w", err)
	}

	received := make([]ReceivedMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		count := 0
		if v, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
			count, _ = strconv.Atoi(v)
		}
		body := ""
		if m.Body != nil {
			body = *m.Body
		}
		handle := ""
		if m.ReceiptHandle != nil {
			handle = *m.ReceiptHandle
		}
		received = append(received, ReceivedMessage{
			ReceiptHandle:           handle,
			Body:                    body,
			ApproximateReceiveCount: count,
		})
	}
	return received, nil
}

// Delete acknowledges successful processing of a message.
func (c *Client) Delete(ctx context.Context, queueURL string, receiptHandle string) error {
	_, err := c.sqs.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &queueURL,
		ReceiptHandle: &receiptHandle,
	})
	if err != nil {
		return fmt.Errorf("queue: delete: %w", err)
	}
	return nil
}
