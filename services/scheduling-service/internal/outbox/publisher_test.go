package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

type fakeSource struct {
	pending   []Record
	published []int64
}

func (f *fakeSource) Claim(_ context.Context, limit int, fn func([]Record) error) (int, error) {
	n := len(f.pending)
	if n > limit {
		n = limit
	}
	batch := f.pending[:n]
	if n == 0 {
		return 0, nil
	}
	if err := fn(batch); err != nil {
		return 0, err
	}
	for _, r := range batch {
		f.published = append(f.published, r.ID)
	}
	f.pending = f.pending[n:]
	return n, nil
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestPublishBatchWritesMessagesWithHeaders(t *testing.T) {
	src := &fakeSource{pending: []Record{
		{ID: 1, EventID: "e-1", AggregateID: "appt-1", EventType: "scheduling.notification.requested.v1", Payload: []byte(`{"a":1}`)},
		{ID: 2, EventID: "e-2", AggregateID: "appt-2", EventType: "scheduling.notification.requested.v1", Payload: []byte(`{"a":2}`)},
		{ID: 3, EventID: "e-3", AggregateID: "appt-3", EventType: "scheduling.notification.requested.v1", Payload: []byte(`{"a":3}`)},
	}}
	w := &fakeWriter{}
	p := NewPublisher(src, w, discard(), PublisherConfig{BatchSize: 2})

	n, err := p.PublishBatch(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("first batch: n=%d err=%v", n, err)
	}
	if len(w.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if msg.Topic != "scheduling.notification.requested.v1" || string(msg.Key) != "appt-1" {
		t.Fatalf("unexpected message routing: topic=%s key=%s", msg.Topic, msg.Key)
	}
	if kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventID) != "e-1" {
		t.Fatalf("missing event_id header: %+v", msg.Headers)
	}

	if n, _ := p.PublishBatch(context.Background()); n != 1 {
		t.Fatalf("expected remaining record, got %d", n)
	}
	if len(src.published) != 3 {
		t.Fatalf("expected all records marked, got %v", src.published)
	}
}

func TestPublishBatchLeavesRecordsOnWriteFailure(t *testing.T) {
	src := &fakeSource{pending: []Record{{ID: 1, EventID: "e-1", EventType: "t"}}}
	p := NewPublisher(src, &fakeWriter{err: errors.New("broker down")}, discard(), PublisherConfig{})

	if _, err := p.PublishBatch(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(src.pending) != 1 || len(src.published) != 0 {
		t.Fatal("record must stay pending after a failed write")
	}
}
