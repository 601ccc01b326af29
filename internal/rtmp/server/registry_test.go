package server

import (
	"io"
	"log/slog"
	"testing"

	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/chunk"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/media"
)

// stubSubscriber implements media.Subscriber with a no‑op SendMessage.
type stubSubscriber struct{}

func (s *stubSubscriber) SendMessage(_ *chunk.Message) error { return nil }

// Ensure stub implements the right interface expected (from media package we imported earlier).
var _ media.Subscriber = (*stubSubscriber)(nil)

// recordingSubscriber implements both media.Subscriber and media.TrySendMessage
// so broadcast tests can exercise the non-blocking path and backpressure drop.
type recordingSubscriber struct {
	received []*chunk.Message
	refuse   bool
}

func (r *recordingSubscriber) SendMessage(m *chunk.Message) error {
	r.received = append(r.received, m)
	return nil
}

func (r *recordingSubscriber) TrySendMessage(m *chunk.Message) bool {
	if r.refuse {
		return false
	}
	r.received = append(r.received, m)
	return true
}

var _ media.TrySendMessage = (*recordingSubscriber)(nil)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRegistryCreateAndGet(t *testing.T) {
	r := NewRegistry()
	if s, ok := r.CreateStream("app/stream1"); !ok || s == nil {
		t.Fatalf("expected new stream to be created")
	}
	// idempotent create
	if _, ok := r.CreateStream("app/stream1"); ok {
		t.Fatalf("expected existing stream, not newly created")
	}
	if r.GetStream("missing") != nil {
		t.Fatalf("expected nil for missing stream")
	}
}

func TestRegistryPublisher(t *testing.T) {
	r := NewRegistry()
	s, _ := r.CreateStream("app/stream2")
	if err := s.SetPublisher("pub1"); err != nil {
		t.Fatalf("unexpected error setting publisher: %v", err)
	}
	if err := s.SetPublisher("pub2"); err == nil {
		t.Fatalf("expected error on second publisher")
	}
}

func TestRegistrySubscribers(t *testing.T) {
	r := NewRegistry()
	s, _ := r.CreateStream("app/stream3")
	s.AddSubscriber(&stubSubscriber{})
	s.AddSubscriber(&stubSubscriber{})
	if c := s.SubscriberCount(); c != 2 {
		t.Fatalf("expected 2 subscribers, got %d", c)
	}
}

func TestRegistryDelete(t *testing.T) {
	r := NewRegistry()
	r.CreateStream("app/stream4")
	if !r.DeleteStream("app/stream4") {
		t.Fatalf("expected delete to succeed")
	}
	if r.GetStream("app/stream4") != nil {
		t.Fatalf("expected stream to be gone")
	}
	if r.DeleteStream("app/stream4") { // second delete
		t.Fatalf("expected second delete to be false")
	}
}

func TestStreamBroadcastDetectsCodecAndFansOut(t *testing.T) {
	r := NewRegistry()
	s, _ := r.CreateStream("app/broadcast")
	a := &recordingSubscriber{}
	b := &recordingSubscriber{}
	s.AddSubscriber(a)
	s.AddSubscriber(b)

	msg := &chunk.Message{TypeID: 8, Payload: []byte{0xAF, 0x00, 0x11, 0x22}, MessageLength: 4}
	s.BroadcastMessage(&media.CodecDetector{}, msg, discardLogger())

	if s.GetAudioCodec() != media.AudioCodecAAC {
		t.Fatalf("expected audio codec AAC, got %s", s.GetAudioCodec())
	}
	for i, sub := range []*recordingSubscriber{a, b} {
		if len(sub.received) != 1 {
			t.Fatalf("subscriber %d expected 1 message, got %d", i, len(sub.received))
		}
	}
}

func TestStreamBroadcastDropsSlowSubscriber(t *testing.T) {
	r := NewRegistry()
	s, _ := r.CreateStream("app/backpressure")
	slow := &recordingSubscriber{refuse: true}
	fast := &recordingSubscriber{}
	s.AddSubscriber(slow)
	s.AddSubscriber(fast)

	msg := &chunk.Message{TypeID: 8, Payload: []byte{0xAF, 0x01, 0xAA, 0xBB}, MessageLength: 4}
	s.BroadcastMessage(&media.CodecDetector{}, msg, discardLogger())

	if len(fast.received) != 1 {
		t.Fatalf("fast subscriber expected 1 message, got %d", len(fast.received))
	}
	if len(slow.received) != 0 {
		t.Fatalf("slow subscriber should have been dropped, got %d", len(slow.received))
	}
}

func TestStreamBroadcastCachesVideoSequenceHeader(t *testing.T) {
	r := NewRegistry()
	s, _ := r.CreateStream("app/seqhdr")
	msg := &chunk.Message{TypeID: 9, Payload: []byte{0x17, 0x00, 0x01, 0x02, 0x03}, MessageLength: 5}
	s.BroadcastMessage(&media.CodecDetector{}, msg, discardLogger())

	if s.VideoSequenceHeader == nil {
		t.Fatalf("expected video sequence header to be cached")
	}
	if s.GetVideoCodec() != media.VideoCodecAVC {
		t.Fatalf("expected video codec AVC, got %s", s.GetVideoCodec())
	}
}
