package media

import (
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/chunk"
)

// Subscriber is implemented by anything that can receive a relayed media
// message (audio/video chunk) for a stream it has subscribed to.
type Subscriber interface {
	SendMessage(*chunk.Message) error
}

// TrySendMessage is an optional interface for non-blocking enqueue semantics.
// A broadcaster prefers this over SendMessage when available so one slow
// subscriber can't stall delivery to the rest.
type TrySendMessage interface {
	TrySendMessage(*chunk.Message) bool
}
