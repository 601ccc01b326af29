package rpc

import (
	"fmt"

	"github.com/tidewave-oss/rtmp-ingest/internal/errors"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/amf"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/chunk"
)

// netStreamVerbs is the fixed set of command names that belong to the
// NetStream family rather than NetConnection. Dispatch checks this set by
// name directly instead of attempting a NetStream parse and falling back to
// NetConnection on failure.
var netStreamVerbs = map[string]bool{
	"play":         true,
	"play2":        true,
	"deleteStream": true,
	"closeStream":  true,
	"receiveAudio": true,
	"receiveVideo": true,
	"publish":      true,
	"seek":         true,
	"pause":        true,
}

// Play2Command represents a parsed "play2" command, whose single argument is
// an AMF0 object (rather than play's positional arguments).
type Play2Command struct {
	StreamName string
	Start      int64
	Duration   int64
	Reset      bool
}

// ParsePlay2Command parses an AMF0 "play2" invocation:
//
//	0: "play2"
//	1: transaction ID
//	2: null
//	3: object {streamName, start, len, oldStreamName, transition}
func ParsePlay2Command(msg *chunk.Message) (*Play2Command, error) {
	vals, err := decodeCommandValues("play2", msg)
	if err != nil {
		return nil, err
	}
	if len(vals) < 4 {
		return nil, errors.NewProtocolError("play2.parse", fmt.Errorf("expected >=4 AMF values, got %d", len(vals)))
	}
	obj, ok := vals[3].(map[string]interface{})
	if !ok {
		return nil, errors.NewProtocolError("play2.parse", fmt.Errorf("fourth value must be object"))
	}
	pc := &Play2Command{Start: -2, Duration: -1}
	if v, ok := obj["streamName"].(string); ok {
		pc.StreamName = v
	}
	if pc.StreamName == "" {
		return nil, errors.NewProtocolError("play2.parse", fmt.Errorf("streamName required"))
	}
	if v, ok := obj["start"].(float64); ok {
		pc.Start = int64(v)
	}
	if v, ok := obj["len"].(float64); ok {
		pc.Duration = int64(v)
	}
	return pc, nil
}

// CloseStreamCommand represents a parsed "closeStream" command: ["closeStream", 0, null].
type CloseStreamCommand struct{}

// ParseCloseStreamCommand validates a closeStream invocation shape.
func ParseCloseStreamCommand(msg *chunk.Message) (*CloseStreamCommand, error) {
	if _, err := decodeCommandValues("closeStream", msg); err != nil {
		return nil, err
	}
	return &CloseStreamCommand{}, nil
}

// ReceiveAVCommand represents a parsed "receiveAudio"/"receiveVideo" command:
// ["receiveAudio"|"receiveVideo", 0, null, bool].
type ReceiveAVCommand struct {
	Enabled bool
}

func parseReceiveAV(name string, msg *chunk.Message) (*ReceiveAVCommand, error) {
	vals, err := decodeCommandValues(name, msg)
	if err != nil {
		return nil, err
	}
	if len(vals) < 4 {
		return nil, errors.NewProtocolError(name+".parse", fmt.Errorf("expected >=4 AMF values, got %d", len(vals)))
	}
	enabled, ok := vals[3].(bool)
	if !ok {
		return nil, errors.NewProtocolError(name+".parse", fmt.Errorf("fourth value must be boolean"))
	}
	return &ReceiveAVCommand{Enabled: enabled}, nil
}

// ParseReceiveAudioCommand parses a "receiveAudio" invocation.
func ParseReceiveAudioCommand(msg *chunk.Message) (*ReceiveAVCommand, error) {
	return parseReceiveAV("receiveAudio", msg)
}

// ParseReceiveVideoCommand parses a "receiveVideo" invocation.
func ParseReceiveVideoCommand(msg *chunk.Message) (*ReceiveAVCommand, error) {
	return parseReceiveAV("receiveVideo", msg)
}

// SeekCommand represents a parsed "seek" command: ["seek", 0, null, offsetMs].
type SeekCommand struct {
	OffsetMs int64
}

// ParseSeekCommand parses a "seek" invocation.
func ParseSeekCommand(msg *chunk.Message) (*SeekCommand, error) {
	vals, err := decodeCommandValues("seek", msg)
	if err != nil {
		return nil, err
	}
	if len(vals) < 4 {
		return nil, errors.NewProtocolError("seek.parse", fmt.Errorf("expected >=4 AMF values, got %d", len(vals)))
	}
	offset, ok := vals[3].(float64)
	if !ok {
		return nil, errors.NewProtocolError("seek.parse", fmt.Errorf("fourth value must be number"))
	}
	return &SeekCommand{OffsetMs: int64(offset)}, nil
}

// PauseCommand represents a parsed "pause" command: ["pause", 0, null, pause, pauseTimeMs].
type PauseCommand struct {
	Pause       bool
	PauseTimeMs int64
}

// ParsePauseCommand parses a "pause" invocation.
func ParsePauseCommand(msg *chunk.Message) (*PauseCommand, error) {
	vals, err := decodeCommandValues("pause", msg)
	if err != nil {
		return nil, err
	}
	if len(vals) < 5 {
		return nil, errors.NewProtocolError("pause.parse", fmt.Errorf("expected >=5 AMF values, got %d", len(vals)))
	}
	pause, ok := vals[3].(bool)
	if !ok {
		return nil, errors.NewProtocolError("pause.parse", fmt.Errorf("fourth value must be boolean"))
	}
	pauseTime, ok := vals[4].(float64)
	if !ok {
		return nil, errors.NewProtocolError("pause.parse", fmt.Errorf("fifth value must be number"))
	}
	return &PauseCommand{Pause: pause, PauseTimeMs: int64(pauseTime)}, nil
}

// decodeCommandValues decodes the AMF0 payload of msg and confirms its first
// value is the expected command name. Shared by the smaller NetStream verb
// parsers above.
func decodeCommandValues(name string, msg *chunk.Message) ([]interface{}, error) {
	if msg == nil {
		return nil, errors.NewProtocolError(name+".parse", fmt.Errorf("nil message"))
	}
	if msg.TypeID != commandMessageAMF0TypeID {
		return nil, errors.NewProtocolError(name+".parse", fmt.Errorf("unexpected message type %d", msg.TypeID))
	}
	vals, err := amf.DecodeAll(msg.Payload)
	if err != nil {
		return nil, errors.NewProtocolError(name+".parse.decode", err)
	}
	if len(vals) == 0 {
		return nil, errors.NewProtocolError(name+".parse", fmt.Errorf("empty AMF payload"))
	}
	cmdName, ok := vals[0].(string)
	if !ok || cmdName != name {
		return nil, errors.NewProtocolError(name+".parse", fmt.Errorf("first value must be string %q", name))
	}
	return vals, nil
}
