package rpc

import (
	"fmt"
	"sync"

	"github.com/tidewave-oss/rtmp-ingest/internal/errors"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/amf"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/chunk"
)

// StreamIDAllocator is a concurrency-safe incremental allocator for RTMP
// message stream IDs. RTMP lets the server choose the stream ID returned by
// createStream; this one starts at 1 and increments by 1 per logical stream.
type StreamIDAllocator struct {
	mu   sync.Mutex
	next uint32
}

// NewStreamIDAllocator returns an allocator whose first Allocate() call
// returns 1 (the conventional first stream ID).
func NewStreamIDAllocator() *StreamIDAllocator { return &StreamIDAllocator{next: 1} }

// Allocate returns the next stream ID.
func (a *StreamIDAllocator) Allocate() uint32 {
	a.mu.Lock()
	id := a.next
	a.next++
	a.mu.Unlock()
	return id
}

// BuildCreateStreamResponse constructs the standard _result response to a
// createStream command: ["_result", transactionID, null, streamID]. The
// returned message is an AMF0 command message (TypeID=20) with
// MessageStreamID=0 (connection-level); CSID selection is deferred to the
// chunk writer layer.
func BuildCreateStreamResponse(transactionID float64, allocator *StreamIDAllocator) (*chunk.Message, uint32, error) {
	if allocator == nil {
		return nil, 0, errors.NewProtocolError("createstream.response", fmt.Errorf("nil allocator"))
	}
	streamID := allocator.Allocate()

	payload, err := amf.EncodeAll(
		"_result",         // command name
		transactionID,     // original transaction id
		nil,               // null per spec
		float64(streamID), // stream id as AMF0 number
	)
	if err != nil {
		return nil, 0, errors.NewProtocolError("createstream.response.encode", fmt.Errorf("amf encode: %w", err))
	}

	msg := &chunk.Message{
		TypeID:          commandMessageAMF0TypeID,
		MessageStreamID: 0, // still connection-level
		Payload:         payload,
		MessageLength:   uint32(len(payload)),
	}
	return msg, streamID, nil
}
