package queue

import (
	"testing"
	"time"
)

func TestClampDelaySeconds(t *testing.T) {
	seconds, err := clampDelaySeconds(300 * time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seconds != 300 {
		t.Fatalf("expected 300, got %d", seconds)
	}

	if _, err := clampDelaySeconds(901 * time.Second); err == nil {
		t.Fatalf("expected error for delay above the 900s ceiling")
	}

	if _, err := clampDelaySeconds(-time.Second); err == nil {
		t.Fatalf("expected error for negative delay")
	}

	seconds, err = clampDelaySeconds(0)
	if err != nil || seconds != 0 {
		t.Fatalf("expected zero delay to be valid, got seconds=%d err=%v", seconds, err)
	}
}

func TestChunkMessagesSplitsAtBatchSize(t *testing.T) {
	messages := make([]Message, 23)
	for i := range messages {
		messages[i] = Message{Event: EventFetchPersonPage}
	}

	chunks := chunkMessages(messages, 10)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks for 23 messages at size 10, got %d", len(chunks))
	}
	if len(chunks[0]) != 10 || len(chunks[1]) != 10 || len(chunks[2]) != 3 {
		t.Fatalf("unexpected chunk sizes: %d, %d, %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestChunkMessagesSingleChunk(t *testing.T) {
	messages := []Message{{Event: EventCompleteSync}}
	chunks := chunkMessages(messages, 10)
	if len(chunks) != 1 || len(chunks[0]) != 1 {
		t.Fatalf("expected a single chunk of one message, got %v", chunks)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := FetchPersonPageMessage{ProcessID: "p-1", PersonObjectType: "contact", Limit: 100}

	body, err := encodeBody(EventFetchPersonPage, msg)
	if err != nil {
		t.Fatalf("encodeBody: %v", err)
	}

	event, err := DecodeEvent(body)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if event != EventFetchPersonPage {
		t.Fatalf("expected event %s, got %s", EventFetchPersonPage, event)
	}

	var decoded FetchPersonPageMessage
	if err := DecodeData(body, &decoded); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if decoded.ProcessID != msg.ProcessID || decoded.PersonObjectType != msg.PersonObjectType || decoded.Limit != msg.Limit {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, msg)
	}
}

func TestDecodeEventRejectsMalformedBody(t *testing.T) {
	if _, err := DecodeEvent("not json"); err == nil {
		t.Fatalf("expected error decoding malformed body")
	}
}
