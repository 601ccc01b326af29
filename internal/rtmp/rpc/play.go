package rpc

import (
	"fmt"

	"github.com/tidewave-oss/rtmp-ingest/internal/errors"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/amf"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/chunk"
)

// PlayCommand represents a parsed "play" command:
// ["play", 0, null, streamName, start, duration, reset]. Only streamName is
// strictly required; the rest carry RTMP's conventional defaults when absent.
type PlayCommand struct {
	App        string        // application name, from the session's connect command
	StreamName string        // raw stream name component
	StreamKey  string        // full key: app/streamName
	Start      int64         // -2=live, -1=recorded, >=0 offset (seconds)
	Duration   int64         // duration if provided (seconds), -1 if not provided
	Reset      bool          // reset flag if provided
	RawValues  []interface{}
}

// ParsePlayCommand parses an RTMP AMF0 command message assumed to contain a
// "play" invocation: command name, transaction ID (ignored), a null command
// object placeholder (ignored), streamName, and then optional start, duration,
// and reset arguments. The caller supplies the application name negotiated
// during connect so the full stream key can be constructed.
func ParsePlayCommand(msg *chunk.Message, app string) (*PlayCommand, error) {
	if msg == nil {
		return nil, errors.NewProtocolError("play.parse", fmt.Errorf("nil message"))
	}
	if msg.TypeID != commandMessageAMF0TypeID {
		return nil, errors.NewProtocolError("play.parse", fmt.Errorf("unexpected message type %d", msg.TypeID))
	}
	vals, err := amf.DecodeAll(msg.Payload)
	if err != nil {
		return nil, errors.NewProtocolError("play.parse.decode", err)
	}
	if len(vals) < 4 {
		return nil, errors.NewProtocolError("play.parse", fmt.Errorf("expected >=4 AMF values, got %d", len(vals)))
	}

	// 0: command name
	name, ok := vals[0].(string)
	if !ok || name != "play" {
		return nil, errors.NewProtocolError("play.parse", fmt.Errorf("first value must be string 'play'"))
	}

	// 3: streamName
	streamName, ok := vals[3].(string)
	if !ok || streamName == "" {
		return nil, errors.NewProtocolError("play.parse", fmt.Errorf("missing stream name"))
	}

	pc := &PlayCommand{App: app, StreamName: streamName, StreamKey: fmt.Sprintf("%s/%s", app, streamName), RawValues: vals}

	// Optional arguments
	if len(vals) >= 5 {
		if v, ok := vals[4].(float64); ok { // start
			pc.Start = int64(v)
		} else {
			pc.Start = -2 // live, the conventional default
		}
	} else {
		pc.Start = -2
	}
	if len(vals) >= 6 {
		if v, ok := vals[5].(float64); ok { // duration
			pc.Duration = int64(v)
		} else {
			pc.Duration = -1
		}
	} else {
		pc.Duration = -1
	}
	if len(vals) >= 7 {
		if v, ok := vals[6].(bool); ok {
			pc.Reset = v
		}
	}

	return pc, nil
}
