package server

// Command Integration
// -------------------
// This file bridges the lower-level connection (handshake + control +
// chunking read/write loops) with the RPC command parsing and handlers so
// that real RTMP clients (OBS / ffmpeg) can complete the connect ->
// createStream -> publish/play sequence, and so the fixed NetStream verb
// set (play2, closeStream, receiveAudio, receiveVideo, seek, pause) gets a
// place to live even where this server has no stateful behavior to apply
// (e.g. seek on a live, not recorded, stream).
//
// Unlocks basic interoperability with standard broadcasters which expect
// the canonical responses:
//   - _result for connect (NetConnection.Connect.Success)
//   - _result for createStream returning stream id (1)
//   - onStatus NetStream.Publish.Start after publish
//
// Media messages are never muxed, transcoded, or persisted here -- they are
// logged for diagnostics and fanned out to this stream's local subscribers.

import (
	"log/slog"
	"time"

	"github.com/tidewave-oss/rtmp-ingest/internal/metrics"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/amf"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/chunk"
	iconn "github.com/tidewave-oss/rtmp-ingest/internal/rtmp/conn"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/control"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/media"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/rpc"
	"github.com/tidewave-oss/rtmp-ingest/internal/rtmp/server/hooks"
)

// commandState holds mutable per-connection fields needed by handlers.
type commandState struct {
	app           string
	streamKey     string // current publishing stream key
	playing       bool   // true once this connection has subscribed via play
	allocator     *rpc.StreamIDAllocator
	mediaLogger   *MediaLogger
	codecDetector *media.CodecDetector
	codecReported bool // whether EventCodecDetected has already fired for this publish
}

// attachCommandHandling installs a dispatcher-backed message handler on the
// provided connection. Safe to call immediately after Accept returns. hooks
// may be nil, in which case event emission is a no-op.
func attachCommandHandling(c *iconn.Connection, reg *Registry, cfg *Config, log *slog.Logger, hookMgr *hooks.HookManager) {
	if c == nil || reg == nil || cfg == nil {
		return
	}
	st := &commandState{
		allocator:     rpc.NewStreamIDAllocator(),
		mediaLogger:   NewMediaLogger(c.ID(), log, 30*time.Second),
		codecDetector: &media.CodecDetector{},
	}

	d := rpc.NewDispatcher(func() string { return st.app })

	d.OnConnect = func(cc *rpc.ConnectCommand, msg *chunk.Message) error {
		log.Debug("OnConnect handler invoked", "app", cc.App, "tcUrl", cc.TcURL, "txn_id", cc.TransactionID)
		st.app = cc.App
		resp, err := rpc.BuildConnectResponse(cc.TransactionID, "Connection succeeded.")
		if err != nil {
			log.Error("connect response build failed", "error", err)
			return nil // swallow errors to keep connection alive
		}
		if err := c.SendMessage(resp); err != nil {
			log.Error("connect response send failed", "error", err)
		} else {
			log.Info("connect response sent successfully", "app", cc.App)
			triggerHookEvent(hookMgr, hooks.EventHandshakeComplete, c.ID(), "", map[string]interface{}{"app": cc.App})
		}
		return nil
	}

	d.OnCreateStream = func(cs *rpc.CreateStreamCommand, msg *chunk.Message) error {
		log.Debug("OnCreateStream handler invoked", "txn_id", cs.TransactionID)
		resp, streamID, err := rpc.BuildCreateStreamResponse(cs.TransactionID, st.allocator)
		if err != nil {
			log.Error("createStream response build failed", "error", err)
			return nil
		}
		if err := c.SendMessage(resp); err != nil {
			log.Error("createStream response send failed", "error", err)
		} else {
			log.Info("createStream response sent successfully", "stream_id", streamID, "txn_id", cs.TransactionID)
		}

		streamBegin := control.EncodeUserControlStreamBegin(streamID)
		if err := c.SendMessage(streamBegin); err != nil {
			log.Error("StreamBegin send failed", "error", err, "stream_id", streamID)
		}
		return nil
	}

	d.OnPublish = func(pc *rpc.PublishCommand, msg *chunk.Message) error {
		_, isNew := reg.CreateStream(pc.StreamKey)
		if isNew {
			triggerHookEvent(hookMgr, hooks.EventStreamCreate, c.ID(), pc.StreamKey, nil)
		}
		if _, err := HandlePublish(reg, c, st.app, msg); err != nil {
			log.Error("publish handle", "error", err)
			return nil
		}
		st.streamKey = pc.StreamKey
		triggerHookEvent(hookMgr, hooks.EventPublishStart, c.ID(), pc.StreamKey, map[string]interface{}{
			"publishing_type": pc.PublishingType,
		})
		return nil
	}

	d.OnPlay = func(pl *rpc.PlayCommand, msg *chunk.Message) error {
		if _, err := HandlePlay(reg, c, st.app, msg); err != nil {
			log.Error("play handle", "error", err)
			return nil
		}
		st.streamKey = pl.StreamKey
		st.playing = true
		triggerHookEvent(hookMgr, hooks.EventPlayStart, c.ID(), pl.StreamKey, nil)
		return nil
	}

	d.OnPlay2 = func(p2 *rpc.Play2Command, msg *chunk.Message) error {
		// play2 only ever targets this server's own live stream registry, so
		// start/len parameters (meant for seeking into a recording) have no
		// effect here; we still honor the subscribe-to-stream-name contract.
		log.Info("play2 command", "stream_name", p2.StreamName, "start", p2.Start, "len", p2.Duration)
		playPayload, err := amf.EncodeAll("play", float64(0), nil, p2.StreamName)
		if err != nil {
			log.Error("play2 handle", "error", err)
			return nil
		}
		playMsg := &chunk.Message{CSID: msg.CSID, TypeID: msg.TypeID, MessageStreamID: msg.MessageStreamID, Payload: playPayload, MessageLength: uint32(len(playPayload))}
		if _, err := HandlePlay(reg, c, st.app, playMsg); err != nil {
			log.Error("play2 handle", "error", err)
			return nil
		}
		st.streamKey = st.app + "/" + p2.StreamName
		st.playing = true
		triggerHookEvent(hookMgr, hooks.EventPlayStart, c.ID(), st.streamKey, nil)
		return nil
	}

	d.OnCloseStream = func(_ *rpc.CloseStreamCommand, msg *chunk.Message) error {
		log.Info("closeStream command", "stream_key", st.streamKey)
		endPublishOrPlay(reg, c, st, hookMgr)
		return nil
	}

	d.OnDeleteStream = func(_ []interface{}, msg *chunk.Message) error {
		log.Info("deleteStream command", "stream_key", st.streamKey)
		endPublishOrPlay(reg, c, st, hookMgr)
		return nil
	}

	d.OnReceiveAudio = func(ra *rpc.ReceiveAVCommand, msg *chunk.Message) error {
		log.Debug("receiveAudio command", "enabled", ra.Enabled, "stream_key", st.streamKey)
		return nil
	}

	d.OnReceiveVideo = func(rv *rpc.ReceiveAVCommand, msg *chunk.Message) error {
		log.Debug("receiveVideo command", "enabled", rv.Enabled, "stream_key", st.streamKey)
		return nil
	}

	d.OnSeek = func(sk *rpc.SeekCommand, msg *chunk.Message) error {
		// Live-only ingest server: there is nothing recorded to seek into.
		log.Debug("seek command ignored (live stream has no seekable timeline)", "offset_ms", sk.OffsetMs, "stream_key", st.streamKey)
		return nil
	}

	d.OnPause = func(ps *rpc.PauseCommand, msg *chunk.Message) error {
		log.Debug("pause command", "pause", ps.Pause, "pause_time_ms", ps.PauseTimeMs, "stream_key", st.streamKey)
		return nil
	}

	c.SetMessageHandler(func(m *chunk.Message) {
		if m == nil {
			return
		}

		log.Debug("message handler invoked", "type_id", m.TypeID, "msid", m.MessageStreamID, "len", len(m.Payload))
		metrics.MessagesDispatched.WithLabelValues(metrics.MessageTypeLabel(m.TypeID)).Inc()

		if m.TypeID == 8 || m.TypeID == 9 {
			st.mediaLogger.ProcessMessage(m)

			if st.streamKey != "" {
				if stream := reg.GetStream(st.streamKey); stream != nil {
					stream.BroadcastMessage(st.codecDetector, m, log)
					if !st.codecReported && stream.GetAudioCodec() != "" && stream.GetVideoCodec() != "" {
						st.codecReported = true
						triggerHookEvent(hookMgr, hooks.EventCodecDetected, c.ID(), st.streamKey, map[string]interface{}{
							"audio_codec": stream.GetAudioCodec(),
							"video_codec": stream.GetVideoCodec(),
						})
					}
				}
			}
			return // media packets don't need command dispatch
		}

		if m.TypeID != rpc.CommandMessageAMF0TypeIDForTest() {
			log.Debug("skipping non-command message", "type_id", m.TypeID)
			return
		}
		if err := d.Dispatch(m); err != nil {
			log.Error("dispatch error", "error", err)
		}
	})
}

// endPublishOrPlay tears down whatever role (publisher or subscriber) this
// connection currently holds on its tracked stream, in response to
// closeStream/deleteStream. Safe to call even if the connection never
// published or played.
func endPublishOrPlay(reg *Registry, c *iconn.Connection, st *commandState, hookMgr *hooks.HookManager) {
	if st.streamKey == "" {
		return
	}
	if st.playing {
		SubscriberDisconnected(reg, st.streamKey, c)
		triggerHookEvent(hookMgr, hooks.EventPlayStop, c.ID(), st.streamKey, nil)
		deleteStreamIfEmpty(reg, st.streamKey, hookMgr)
		st.playing = false
		st.streamKey = ""
		return
	}
	PublisherDisconnected(reg, st.streamKey, c)
	triggerHookEvent(hookMgr, hooks.EventPublishStop, c.ID(), st.streamKey, nil)
	deleteStreamIfEmpty(reg, st.streamKey, hookMgr)
	st.streamKey = ""
}

// deleteStreamIfEmpty removes a stream from the registry once it has neither
// a publisher nor any subscribers left, so a vacated stream key doesn't
// linger in memory for the life of the server.
func deleteStreamIfEmpty(reg *Registry, streamKey string, hookMgr *hooks.HookManager) {
	s := reg.GetStream(streamKey)
	if s == nil {
		return
	}
	s.mu.RLock()
	empty := s.Publisher == nil && len(s.Subscribers) == 0
	s.mu.RUnlock()
	if !empty {
		return
	}
	if reg.DeleteStream(streamKey) {
		triggerHookEvent(hookMgr, hooks.EventStreamDelete, "", streamKey, nil)
	}
}
