package control

// Decodes RTMP control message payloads (types 1-6), validating each
// message's fixed payload length before interpreting its fields.

import (
	"encoding/binary"
	stderrors "errors"
	"fmt"
)

// ErrInvalidEventType is returned when a User Control message carries an
// event type outside the wire spec's defined set (0-4, 6-7; 5 is reserved).
var ErrInvalidEventType = stderrors.New("invalid user control event type")

// Structured result types returned by the decoder. These mirror the logical
// protocol fields rather than exposing raw byte slices to callers.

// SetChunkSize represents a Type 1 Set Chunk Size message.
type SetChunkSize struct {
	Size uint32
}

// AbortMessage represents a Type 2 Abort Message, included for symmetry with
// the encoder even though nothing in this package currently emits one.
type AbortMessage struct {
	CSID uint32
}

// Acknowledgement represents a Type 3 Acknowledgement message.
type Acknowledgement struct {
	SequenceNumber uint32
}

// UserControl represents a Type 4 User Control message. Every event type in
// the wire spec's 0-7 range (5 is reserved and never sent) is interpreted;
// anything else is rejected as InvalidEventType rather than silently
// captured as raw bytes.
type UserControl struct {
	EventType uint16
	// Optional fields; which are populated depends on EventType.
	StreamID       uint32 // Events 0,1,2,4: Stream Begin/EOF/Dry/IsRecorded
	BufferLengthMs uint32 // Event 3: Set Buffer Length
	Timestamp      uint32 // Events 6/7: Ping Request / Response
}

// WindowAcknowledgementSize represents a Type 5 Window Ack Size message.
type WindowAcknowledgementSize struct {
	Size uint32
}

// SetPeerBandwidth represents a Type 6 Set Peer Bandwidth message.
type SetPeerBandwidth struct {
	Bandwidth uint32
	LimitType uint8 // 0 = Hard, 1 = Soft, 2 = Dynamic
}

// Decode decodes a control message (types 1-6) into a structured Go value.
// The caller supplies the RTMP message type ID and the raw payload bytes.
// Returns an error for malformed payloads or validation failures.
func Decode(typeID uint8, payload []byte) (any, error) { // any == interface{}
	switch typeID {
	case TypeSetChunkSize:
		if len(payload) != 4 {
			return nil, fmt.Errorf("set chunk size: expected 4 bytes got=%d", len(payload))
		}
		v := binary.BigEndian.Uint32(payload)
		if v == 0 {
			return nil, fmt.Errorf("set chunk size: size must be > 0")
		}
		if v&0x80000000 != 0 { // bit 31 must be zero per spec (31-bit value)
			return nil, fmt.Errorf("set chunk size: high bit (bit 31) must be 0 size=%d", v)
		}
		return &SetChunkSize{Size: v}, nil
	case TypeAbortMessage:
		if len(payload) != 4 {
			return nil, fmt.Errorf("abort message: expected 4 bytes got=%d", len(payload))
		}
		return &AbortMessage{CSID: binary.BigEndian.Uint32(payload)}, nil
	case TypeAcknowledgement:
		if len(payload) != 4 {
			return nil, fmt.Errorf("acknowledgement: expected 4 bytes got=%d", len(payload))
		}
		return &Acknowledgement{SequenceNumber: binary.BigEndian.Uint32(payload)}, nil
	case TypeUserControl:
		if len(payload) < 2 {
			return nil, fmt.Errorf("user control: expected at least 2 bytes got=%d", len(payload))
		}
		ev := binary.BigEndian.Uint16(payload[0:2])
		uc := &UserControl{EventType: ev}
		switch ev {
		case UCStreamBegin, UCStreamEOF, UCStreamDry, UCStreamIsRecorded:
			if len(payload) != 6 {
				return nil, fmt.Errorf("user control event %d: expected 6 bytes got=%d", ev, len(payload))
			}
			uc.StreamID = binary.BigEndian.Uint32(payload[2:6])
		case UCSetBufferLength:
			if len(payload) != 10 {
				return nil, fmt.Errorf("user control set buffer length: expected 10 bytes got=%d", len(payload))
			}
			uc.StreamID = binary.BigEndian.Uint32(payload[2:6])
			uc.BufferLengthMs = binary.BigEndian.Uint32(payload[6:10])
		case UCPingRequest, UCPingResponse:
			if len(payload) != 6 {
				return nil, fmt.Errorf("user control ping: expected 6 bytes got=%d", len(payload))
			}
			uc.Timestamp = binary.BigEndian.Uint32(payload[2:6])
		default:
			return nil, fmt.Errorf("user control: %w: event type %d", ErrInvalidEventType, ev)
		}
		return uc, nil
	case TypeWindowAcknowledgement:
		if len(payload) != 4 {
			return nil, fmt.Errorf("window ack size: expected 4 bytes got=%d", len(payload))
		}
		v := binary.BigEndian.Uint32(payload)
		if v == 0 {
			return nil, fmt.Errorf("window ack size: must be > 0")
		}
		return &WindowAcknowledgementSize{Size: v}, nil
	case TypeSetPeerBandwidth:
		if len(payload) != 5 {
			return nil, fmt.Errorf("set peer bandwidth: expected 5 bytes got=%d", len(payload))
		}
		bw := binary.BigEndian.Uint32(payload[0:4])
		lt := payload[4]
		if lt > 2 { // 0=Hard 1=Soft 2=Dynamic
			return nil, fmt.Errorf("set peer bandwidth: invalid limit type=%d", lt)
		}
		return &SetPeerBandwidth{Bandwidth: bw, LimitType: lt}, nil
	default:
		return nil, fmt.Errorf("unsupported control message type id=%d", typeID)
	}
}
