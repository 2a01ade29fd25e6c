// Package gateway implements the Connection Handler (C4) and Idle Reaper
// (C7): the per-connection state machine driving C1 (frame.Extract) into
// C2 (codec.Decoder) and out to C3 (the session registry) and C5 (the
// telemetry publisher), plus the periodic idle scan that closes stale
// connections.
package gateway

import (
	"context"
	"encoding/hex"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fleetlink/gt06-gateway/internal/bus"
	"github.com/fleetlink/gt06-gateway/internal/frame"
	"github.com/fleetlink/gt06-gateway/internal/session"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/codec"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/message"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/protocol"
)

// State names a position in the per-connection state machine.
type State int

const (
	StateNew State = iota
	StateExpectLogin
	StateAuthenticated
	StateClosed
)

// Config bounds the handler's timeouts and failure tolerance.
type Config struct {
	ReadTimeout      time.Duration // default 180s, resets on any byte
	WriteTimeout     time.Duration // default 10s, fatal on expiry
	FailureThreshold int           // default 16
	FailureWindow    time.Duration // default 30s
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:      180 * time.Second,
		WriteTimeout:     10 * time.Second,
		FailureThreshold: 16,
		FailureWindow:    30 * time.Second,
	}
}

// Handler owns one connection's socket, decode buffer, and state.
type Handler struct {
	cfg       Config
	conn      net.Conn
	channelID string

	decoder   *codec.Decoder
	encoder   *codec.Encoder
	registry  session.Registry
	publisher *bus.Publisher

	table *ChannelTable

	mu        sync.Mutex
	state     State
	sessionID string
	imei      string
	buf       []byte
	failures  []time.Time
	replaced  bool // set by the replacing handler; suppresses this handler's own Disconnected on close

	outbound chan []byte

	log *logrus.Entry
}

// NewHandler constructs a handler for an accepted connection. channelID
// must be unique for the lifetime of the process; it is the opaque handle
// the Session Registry stores instead of the net.Conn itself.
func NewHandler(cfg Config, conn net.Conn, channelID string, decoder *codec.Decoder, encoder *codec.Encoder, registry session.Registry, publisher *bus.Publisher, table *ChannelTable) *Handler {
	return &Handler{
		cfg:       cfg,
		conn:      conn,
		channelID: channelID,
		decoder:   decoder,
		encoder:   encoder,
		registry:  registry,
		publisher: publisher,
		table:     table,
		state:     StateNew,
		outbound:  make(chan []byte, 16),
		log:       logrus.WithField("remote_addr", conn.RemoteAddr().String()),
	}
}

// SendFrame implements bus.FrameSender for this connection; the Command
// Consumer (C6) calls it, but the write itself always happens on this
// handler's own goroutine via the outbound channel — C6 never touches the
// socket.
func (h *Handler) SendFrame(ctx context.Context, channelID string, f []byte) error {
	select {
	case h.outbound <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the connection until it closes, reading frames and
// dispatching them through the state machine. It returns once the
// connection is fully torn down.
func (h *Handler) Run(ctx context.Context) {
	h.mu.Lock()
	h.state = StateExpectLogin
	h.mu.Unlock()

	h.table.Register(h.channelID, h)
	defer h.close(ctx)

	go h.writePump()

	readBuf := make([]byte, 4096)
	for {
		if err := h.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
			return
		}
		n, err := h.conn.Read(readBuf)
		if n > 0 {
			h.mu.Lock()
			h.buf = append(h.buf, readBuf[:n]...)
			buf := h.buf
			h.mu.Unlock()

			frames, residue := frame.Extract(buf)
			h.mu.Lock()
			h.buf = residue
			h.mu.Unlock()

			for _, f := range frames {
				if !h.handleFrame(ctx, f) {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// handleFrame processes one decoded frame through the state machine and
// reports whether the connection should remain open.
func (h *Handler) handleFrame(ctx context.Context, f frame.Frame) bool {
	if !f.StopValid {
		h.log.WithField("stop_marker", f.StopMarker).Warn("non-canonical stop marker accepted")
	}

	h.mu.Lock()
	state := h.state
	h.mu.Unlock()

	switch state {
	case StateExpectLogin:
		if f.Protocol != protocol.ProtocolLogin {
			return false
		}
		return h.handleLogin(ctx, f)
	case StateAuthenticated:
		return h.handleAuthenticated(ctx, f)
	default:
		return false
	}
}

func (h *Handler) handleLogin(ctx context.Context, f frame.Frame) bool {
	msg, crcValid, err := h.decoder.Decode(f)
	if err != nil || msg.Kind != message.KindLogin {
		return false
	}
	if !crcValid {
		h.recordFailure()
	}

	imei := msg.IMEI.String()

	// Captured before CreateOrReplace, which deletes the prior record as
	// part of its own transaction: by the time it returns, the prior
	// session's channel id is no longer resolvable through the registry.
	var priorChannelID string
	if priorSess, err := h.registry.GetByIMEI(ctx, imei); err == nil {
		priorChannelID = priorSess.ChannelID
	}

	sess, priorID, replaced, err := h.registry.CreateOrReplace(ctx, imei, h.channelID, h.conn.RemoteAddr().String())
	if err != nil {
		h.log.WithError(err).Error("create_or_replace failed, closing connection")
		return false
	}

	if replaced {
		if prior, ok := h.table.Get(priorChannelID); ok {
			prior.markReplaced()
			prior.forceClose()
		}
		h.publisher.PublishSession(ctx, imei, bus.SessionRecord{
			Kind: string(session.EventDisconnected), SessionID: priorID, IMEI: imei, At: time.Now(),
		})
	}

	if err := h.registry.Authenticate(ctx, sess.ID); err != nil {
		h.log.WithError(err).Error("authenticate failed, closing connection")
		return false
	}

	h.mu.Lock()
	h.sessionID = sess.ID
	h.imei = imei
	h.state = StateAuthenticated
	h.mu.Unlock()

	h.writeNow(h.encoder.Ack(f.Protocol, f.Serial))

	h.publisher.PublishSession(ctx, imei, bus.SessionRecord{
		Kind: string(session.EventConnected), SessionID: sess.ID, IMEI: imei,
		RemoteAddr: h.conn.RemoteAddr().String(), At: time.Now(),
	})
	return true
}

func (h *Handler) handleAuthenticated(ctx context.Context, f frame.Frame) bool {
	h.mu.Lock()
	sessionID := h.sessionID
	imei := h.imei
	h.mu.Unlock()

	_ = h.registry.Touch(ctx, sessionID, time.Now())

	msg, crcValid, err := h.decoder.Decode(f)
	if err != nil {
		h.recordFailure()
		if h.failureThresholdExceeded() {
			return false
		}
		return true
	}
	if !crcValid {
		h.recordFailure()
	}

	// ACK before publish: the device's retransmit timer must clear before
	// downstream sees the data.
	if message.RequiresAck(msg.Kind) {
		h.writeNow(h.encoder.Ack(f.Protocol, f.Serial))
	}

	if msg.Kind == message.KindLocation || msg.Kind == message.KindAlarm {
		if loc, ok := extractLocation(msg); ok {
			_ = h.registry.UpdatePosition(ctx, sessionID, session.Position{
				Latitude: loc.Coordinates.Latitude, Longitude: loc.Coordinates.Longitude, At: time.Now(),
			})
		}
	}

	h.publisher.PublishTelemetry(imei, telemetryRecordFor(imei, msg, f))

	if h.failureThresholdExceeded() {
		return false
	}
	return true
}

func extractLocation(msg message.Message) (message.LocationBody, bool) {
	switch b := msg.Body.(type) {
	case message.LocationBody:
		return b, true
	case message.AlarmBody:
		return b.Location, true
	default:
		return message.LocationBody{}, false
	}
}

func telemetryRecordFor(imei string, msg message.Message, f frame.Frame) bus.TelemetryRecord {
	rec := bus.TelemetryRecord{
		IMEI:        imei,
		MessageKind: string(msg.Kind),
		RawHex:      hex.EncodeToString(f.Raw),
		At:          time.Now(),
	}
	if loc, ok := extractLocation(msg); ok {
		rec.Location = &bus.LocationRecord{
			Latitude: loc.Coordinates.Latitude, Longitude: loc.Coordinates.Longitude,
			Speed: float64(loc.Speed), Course: float64(loc.Course.Course),
			Satellites: int(loc.Satellites), Valid: loc.GPSValid, Timestamp: loc.DeviceTime,
		}
	}
	if st, ok := msg.Body.(message.StatusBody); ok {
		rec.Battery = &bus.BatteryRecord{Mv: int(st.BatteryMv), Pct: int(st.BatteryPct)}
		rec.GSM = &bus.GSMRecord{Dbm: st.GSMDbm, Level: int(st.GSMLevel)}
	}
	return rec
}

func (h *Handler) recordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	h.failures = append(h.failures, now)
	cutoff := now.Add(-h.cfg.FailureWindow)
	kept := h.failures[:0]
	for _, t := range h.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	h.failures = kept
}

func (h *Handler) failureThresholdExceeded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.failures) >= h.cfg.FailureThreshold
}

func (h *Handler) writeNow(data []byte) {
	_ = h.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	_, err := h.conn.Write(data)
	if err != nil {
		h.log.WithError(err).Warn("write failed, closing connection")
		_ = h.conn.Close()
	}
}

func (h *Handler) writePump() {
	for data := range h.outbound {
		h.writeNow(data)
	}
}

// forceClose is used to close a connection being replaced by a new login
// for the same IMEI, before the new session's Connected event is emitted.
func (h *Handler) forceClose() {
	_ = h.conn.Close()
}

// markReplaced tells this handler that a newer login has already taken over
// its IMEI and published the Disconnected/Connected pair itself; close must
// not republish Disconnected a second time once this handler's own read
// loop unwinds.
func (h *Handler) markReplaced() {
	h.mu.Lock()
	h.replaced = true
	h.mu.Unlock()
}

func (h *Handler) close(ctx context.Context) {
	h.mu.Lock()
	h.state = StateClosed
	sessionID := h.sessionID
	imei := h.imei
	replaced := h.replaced
	h.mu.Unlock()

	h.table.Unregister(h.channelID)
	close(h.outbound)
	_ = h.conn.Close()

	if sessionID == "" {
		return
	}
	if replaced {
		return
	}
	_ = h.registry.Delete(ctx, sessionID)
	if h.publisher != nil {
		h.publisher.PublishSession(ctx, imei, bus.SessionRecord{
			Kind: string(session.EventDisconnected), SessionID: sessionID, IMEI: imei, At: time.Now(),
		})
	}
}
