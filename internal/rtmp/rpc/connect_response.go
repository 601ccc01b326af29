package rpc

import (
	"fmt"

	"github.com/tidewave-oss/rtmp-ingest/internal/errors"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/amf"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/chunk"
)

// BuildConnectResponse builds the standard _result response for a successful
// connect command: an RTMP AMF0 command message (type 20) shaped as
// ["_result", transactionID, properties:Object, information:Object].
//
// properties carries fmsVer (a conventional server version string),
// capabilities (bitmask, 31), and mode (1). information carries level
// "status", code "NetConnection.Connect.Success", and the caller-provided
// description.
//
// The returned message uses MessageStreamID=0 (connection level); CSID is
// left zero and assigned by the chunk writer layer when it serializes for
// the wire (typically 3 for command messages).
func BuildConnectResponse(transactionID float64, description string) (*chunk.Message, error) {
	props := map[string]interface{}{
		"fmsVer":       "FMS/3,5,7,7009", // common version string used by many simple servers
		"capabilities": 31.0,
		"mode":         1.0,
	}

	info := map[string]interface{}{
		"level":       "status",
		"code":        "NetConnection.Connect.Success",
		"description": description,
	}

	payload, err := amf.EncodeAll("_result", transactionID, props, info)
	if err != nil {
		return nil, errors.NewProtocolError("connect.response.encode", fmt.Errorf("amf encode: %w", err))
	}

	return &chunk.Message{
		// CSID left unset; writer assigns the actual chunk stream.
		TypeID:          commandMessageAMF0TypeID,
		MessageStreamID: 0,
		Payload:         payload,
		MessageLength:   uint32(len(payload)),
	}, nil
}
