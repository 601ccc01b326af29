package server

// HandlePlay subscribes a client connection to an existing published stream,
// following the same lightweight approach as publish_handler.go: parse the
// command, look the stream up in the registry, and build/send the
// onStatus/control messages directly rather than routing through a dispatcher.

import (
	"fmt"

	rtmperrors "github.com/tidewave-oss/rtmp-ingest/internal/errors"
	"github.com/tidewave-oss/rtmp-ingest/internal/logger"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/amf"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/chunk"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/control"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/rpc"
)

// HandlePlay parses the incoming play command (msg) and attempts to subscribe
// the connection to the target stream. It sends (in order):
//  1. onStatus NetStream.Play.StreamNotFound  (if missing stream or publisher) OR
//  1. User Control Stream Begin (event 0)
//  2. onStatus NetStream.Play.Start
//
// Only the final onStatus (either StreamNotFound or Play.Start) is returned.
func HandlePlay(reg *Registry, conn sender, app string, msg *chunk.Message) (*chunk.Message, error) {
	if reg == nil || conn == nil || msg == nil {
		return nil, rtmperrors.NewProtocolError("play.handle", fmt.Errorf("nil argument"))
	}

	pcmd, err := rpc.ParsePlayCommand(msg, app)
	if err != nil {
		return nil, err
	}

	log := logger.Logger().With("component", "rtmp_server")
	log.Info("play command", "stream_key", pcmd.StreamKey)

	stream := reg.GetStream(pcmd.StreamKey)
	if stream == nil || stream.Publisher == nil { // not found or no active publisher
		log.Warn("play command failed - stream not found or no publisher", "stream_key", pcmd.StreamKey)
		notFound, _ := buildOnStatus(msg.MessageStreamID, pcmd.StreamKey, "NetStream.Play.StreamNotFound", fmt.Sprintf("Stream %s not found.", pcmd.StreamKey))
		_ = conn.SendMessage(notFound)
		return notFound, nil
	}

	stream.AddSubscriber(conn.(interface{ SendMessage(*chunk.Message) error }))
	log.Info("Subscriber added", "stream_key", pcmd.StreamKey, "total_subscribers", len(stream.Subscribers))

	// 1. User Control Stream Begin (event 0) with the play command's message stream id.
	uc := control.EncodeUserControlStreamBegin(msg.MessageStreamID)
	_ = conn.SendMessage(uc)

	// 2. onStatus NetStream.Play.Start
	started, err := buildOnStatus(msg.MessageStreamID, pcmd.StreamKey, "NetStream.Play.Start", fmt.Sprintf("Started playing %s.", pcmd.StreamKey))
	if err != nil {
		return nil, rtmperrors.NewProtocolError("play.handle.encode", err)
	}
	_ = conn.SendMessage(started)

	// 3. Send cached sequence headers to late-joining subscriber (CRITICAL for relay)
	// This ensures the subscriber receives codec initialization (SPS/PPS for H.264,
	// AudioSpecificConfig for AAC) before receiving media frames.
	stream.mu.RLock()
	audioSeqHdr := stream.AudioSequenceHeader
	videoSeqHdr := stream.VideoSequenceHeader
	stream.mu.RUnlock()

	if audioSeqHdr != nil {
		// Clone the cached audio sequence header with the subscriber's message stream ID
		audioMsg := &chunk.Message{
			CSID:            audioSeqHdr.CSID,
			TypeID:          audioSeqHdr.TypeID,
			Timestamp:       0, // Sequence headers always use timestamp 0
			MessageStreamID: msg.MessageStreamID,
			MessageLength:   audioSeqHdr.MessageLength,
			Payload:         make([]byte, len(audioSeqHdr.Payload)),
		}
		copy(audioMsg.Payload, audioSeqHdr.Payload)
		_ = conn.SendMessage(audioMsg)
		log.Info("Sent cached audio sequence header to subscriber", "stream_key", pcmd.StreamKey, "size", len(audioMsg.Payload))
	}

	if videoSeqHdr != nil {
		// Clone the cached video sequence header with the subscriber's message stream ID
		videoMsg := &chunk.Message{
			CSID:            videoSeqHdr.CSID,
			TypeID:          videoSeqHdr.TypeID,
			Timestamp:       0, // Sequence headers always use timestamp 0
			MessageStreamID: msg.MessageStreamID,
			MessageLength:   videoSeqHdr.MessageLength,
			Payload:         make([]byte, len(videoSeqHdr.Payload)),
		}
		copy(videoMsg.Payload, videoSeqHdr.Payload)
		_ = conn.SendMessage(videoMsg)
		log.Info("Sent cached video sequence header to subscriber", "stream_key", pcmd.StreamKey, "size", len(videoMsg.Payload))
	}

	return started, nil
}

// buildOnStatus creates an AMF0 onStatus message, matching the shape
// publish_handler.go builds for its own status replies.
func buildOnStatus(streamID uint32, streamKey, code, description string) (*chunk.Message, error) {
	info := map[string]interface{}{
		"level":       "status",
		"code":        code,
		"description": description,
		"details":     streamKey,
	}
	payload, err := amf.EncodeAll("onStatus", float64(0), nil, info)
	if err != nil {
		return nil, err
	}
	return &chunk.Message{
		CSID:            5,
		TypeID:          rpc.CommandMessageAMF0TypeIDForTest(),
		MessageStreamID: streamID,
		MessageLength:   uint32(len(payload)),
		Payload:         payload,
	}, nil
}

// SubscriberDisconnected removes the subscriber from the stream's list, if
// present, mirroring PublisherDisconnected for symmetry.
func SubscriberDisconnected(reg *Registry, streamKey string, sub sender) {
	if reg == nil || streamKey == "" || sub == nil {
		return
	}
	s := reg.GetStream(streamKey)
	if s == nil {
		return
	}
	s.RemoveSubscriber(sub.(interface{ SendMessage(*chunk.Message) error }))
}
