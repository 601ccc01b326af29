package server

// HandlePublish registers a publisher connection in the stream registry and
// sends an onStatus NetStream.Publish.Start message back to the client,
// returning the built status message so unit tests can assert on its
// contents without needing the full dispatcher stack.

import (
	"fmt"

	rtmperrors "github.com/tidewave-oss/rtmp-ingest/internal/errors"
	"github.com/tidewave-oss/rtmp-ingest/internal/metrics"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/amf"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/chunk"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/rpc"
)

// sender is the minimal interface this package needs from a connection.
// *conn.Connection satisfies it; tests can supply a stub instead.
type sender interface {
	SendMessage(*chunk.Message) error
}

// HandlePublish parses the publish command message, registers the publisher
// in the registry (creating the stream if necessary) and sends an onStatus
// NetStream.Publish.Start message. It returns the generated onStatus message
// (already sent) for test assertion. Errors are wrapped as protocol errors
// where appropriate.
func HandlePublish(reg *Registry, conn sender, app string, msg *chunk.Message) (*chunk.Message, error) {
	if reg == nil || conn == nil || msg == nil {
		return nil, rtmperrors.NewProtocolError("publish.handle", fmt.Errorf("nil argument"))
	}

	pcmd, err := rpc.ParsePublishCommand(app, msg)
	if err != nil {
		return nil, err
	}

	stream, _ := reg.CreateStream(pcmd.StreamKey)
	if stream == nil {
		return nil, rtmperrors.NewProtocolError("publish.handle", fmt.Errorf("failed to create stream"))
	}

	// A stream key may only have one active publisher at a time.
	if err := stream.SetPublisher(conn); err != nil {
		return nil, err // already a *errors.ProtocolError from registry or ErrPublisherExists
	}

	info := map[string]interface{}{
		"level":       "status",
		"code":        "NetStream.Publish.Start",
		"description": fmt.Sprintf("Publishing %s.", pcmd.StreamKey),
		"details":     pcmd.StreamKey,
	}

	payload, err := amf.EncodeAll(
		"onStatus", // command name
		float64(0), // transaction ID (notification)
		nil,        // command object (null)
		info,       // info object
	)
	if err != nil {
		return nil, rtmperrors.NewProtocolError("publish.handle.encode", err)
	}

	onStatus := &chunk.Message{
		CSID:            5,                                     // typical control / onStatus chunk stream id (spec allows 4/5)
		TypeID:          rpc.CommandMessageAMF0TypeIDForTest(), // expose constant via helper for now
		MessageStreamID: msg.MessageStreamID,                   // same stream id as publish command
		MessageLength:   uint32(len(payload)),
		Payload:         payload,
	}

	// Send the status message. If this fails we still return it so tests can
	// inspect the structure; caller may decide follow-up action.
	_ = conn.SendMessage(onStatus)
	return onStatus, nil
}

// PublisherDisconnected clears the publisher from the stream if it matches
// the provided connection. This allows tests to simulate connection close
// without the full connection lifecycle implemented yet. Future tasks can
// extend this to broadcast Stream EOF to subscribers.
func PublisherDisconnected(reg *Registry, streamKey string, pub sender) {
	if reg == nil || streamKey == "" || pub == nil {
		return
	}
	s := reg.GetStream(streamKey)
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.Publisher == pub {
		s.Publisher = nil
		metrics.StreamsActive.Dec()
	}
	s.mu.Unlock()
}
