package relay

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/PowerMeep/GBA-PK-MMO/internal/protocol"
	"github.com/PowerMeep/GBA-PK-MMO/internal/world"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	outQueueSize = 32

	// MinSupportedVersion is the lowest client version the relay accepts.
	// Unlike the rest of admission's inputs this is not part of the
	// environment-variable configuration surface (spec.md §6) — it is a
	// protocol constant, same as in the original server.
	MinSupportedVersion = 1020
)

// Deps bundles the collaborators every Session needs, mirroring the
// teacher's handler.Deps aggregate.
type Deps struct {
	World      *world.World
	Metrics    *Metrics
	Log        *zap.Logger
	ServerNick string
	Games      map[string]struct{}
}

// Session represents one connected game client: it owns the socket,
// parses inbound packets, writes outbound packets, and tracks the
// player's last known position, current map, and missed-ping counter.
//
// Per spec.md §5, the read and write sides run as separate goroutines to
// avoid head-of-line blocking on a slow peer; a single mutex guards the
// handful of fields that are read across sessions (by fan-out) or by the
// Liveness Ticker, concurrently with this session's own read goroutine.
type Session struct {
	deps *Deps
	conn net.Conn
	log  *zap.Logger

	remoteAddr string
	remoteIP   string

	nick    string
	version int

	mu           sync.Mutex
	mapID        protocol.MapId
	hasMap       bool
	latency      string
	lastPosition []byte

	unrespondedPings atomic.Int32

	outQueue chan []byte
	closeCh  chan struct{}

	closeOnce    sync.Once
	teardownOnce sync.Once
}

// NewSession constructs a Session for a freshly accepted connection. It
// does not perform I/O; call Serve to run admission and the steady-state
// loop.
func NewSession(conn net.Conn, deps *Deps) *Session {
	addr := conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return &Session{
		deps:       deps,
		conn:       conn,
		remoteAddr: addr,
		remoteIP:   host,
		latency:    "0000",
		outQueue:   make(chan []byte, outQueueSize),
		closeCh:    make(chan struct{}),
		log:        deps.Log.With(zap.String("remote", addr)),
	}
}

// Nick satisfies world.Occupant.
func (s *Session) Nick() string { return s.nick }

// RemoteIP satisfies world.Occupant.
func (s *Session) RemoteIP() string { return s.remoteIP }

func (s *Session) currentMap() (protocol.MapId, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapID, s.hasMap
}

func (s *Session) setMap(m protocol.MapId) {
	s.mu.Lock()
	s.mapID = m
	s.hasMap = true
	s.mu.Unlock()
}

// Latency returns the session's most recently measured ping latency,
// formatted as 4 decimal digits ("0000" until the first PONG).
func (s *Session) Latency() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latency
}

func (s *Session) setLatency(v string) {
	s.mu.Lock()
	s.latency = v
	s.mu.Unlock()
}

// LastPosition returns the most recent rewritten position frame this
// session emitted, used to prime newly-visible peers. Returns nil if the
// session has never reported a position.
func (s *Session) LastPosition() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPosition
}

func (s *Session) setLastPosition(frame []byte) {
	s.mu.Lock()
	s.lastPosition = frame
	s.mu.Unlock()
}

// Serve runs admission followed by the steady-state read loop, and
// guarantees teardown on return. It blocks until the session ends.
func (s *Session) Serve(ctx context.Context) {
	if !s.admit() {
		s.close()
		return
	}

	go s.writeLoop()
	s.deps.Metrics.SessionsConnected.Inc()

	s.readLoop(ctx)

	reason := "io_error"
	if ctx.Err() != nil {
		reason = "shutdown"
	}
	s.teardown(reason)
}

// admit implements spec.md §4.3: parse the first frame as JOIN, reject
// with the appropriate DENY reason on any failure, or register the
// session and process its initial position report.
func (s *Session) admit() bool {
	frame, err := s.readFrame()
	if err != nil {
		s.denySync(protocol.ReasonMalformed, "malformed")
		return false
	}
	if verr := protocol.ValidateFrame(frame); verr != nil || protocol.Type(frame) != protocol.TypeJoin {
		s.denySync(protocol.ReasonMalformed, "malformed")
		return false
	}

	version, verr := protocol.Version(frame)
	if verr != nil {
		s.denySync(protocol.ReasonMalformed, "malformed")
		return false
	}
	s.version = version
	if version < MinSupportedVersion {
		s.denySync(strconv.Itoa(MinSupportedVersion), "version")
		return false
	}

	nick := protocol.Nick(frame)
	if !protocol.ValidateNickChars(nick) {
		s.denySync(protocol.ReasonBadChars, "bad_chars")
		return false
	}

	game := protocol.GameTag(frame)
	if _, ok := s.deps.Games[game]; !ok {
		s.denySync(protocol.ReasonGame, "unsupported_game")
		return false
	}

	outcome, existing := s.deps.World.TryRegister(nick, s)
	switch outcome {
	case world.RegisterNameTaken:
		s.denySync(protocol.ReasonNameTaken, "name_taken")
		return false
	case world.RegisterFull:
		s.denySync(protocol.ReasonServerFull, "full")
		return false
	case world.RegisterReconnect:
		s.log.Warn("reconnecting, replacing prior session", zap.String("nick", strings.TrimRight(nick, " ")))
		if prior, ok := existing.(*Session); ok {
			prior.teardown("reconnect_replaced")
		}
		s.deps.World.Insert(nick, s)
		s.deps.Metrics.AdmissionOutcomes.WithLabelValues("reconnect").Inc()
	case world.RegisterOK:
		s.deps.Metrics.AdmissionOutcomes.WithLabelValues("ok").Inc()
	}

	s.nick = nick
	s.log = s.log.With(zap.String("nick", strings.TrimRight(nick, " ")))

	if err := s.writeDirect(protocol.BuildControlFrame(s.deps.ServerNick, protocol.TypeStrt, "")); err != nil {
		s.log.Debug("failed to send STRT", zap.Error(err))
		s.deps.World.Teardown(s, nick, "", false)
		return false
	}

	s.applyPositionUpdate(frame, protocol.PayloadStartJoin)
	return true
}

// denySync synchronously writes a DENY frame (admission runs before the
// write goroutine starts, so this is the only writer), guaranteeing the
// client sees exactly the DENY frame and nothing interleaved with it; Serve
// closes the socket once admit returns false. metricReason is a stable label distinct from the
// wire payload (which for a version mismatch is a 4-digit number, not a
// useful metric label).
func (s *Session) denySync(wireReason, metricReason string) {
	if err := s.writeDirect(protocol.BuildControlFrame(s.deps.ServerNick, protocol.TypeDeny, wireReason)); err != nil {
		s.log.Debug("failed to send DENY", zap.Error(err))
	}
	s.deps.Metrics.AdmissionOutcomes.WithLabelValues("deny_" + metricReason).Inc()
}

func (s *Session) writeDirect(frame []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := s.conn.Write(frame)
	return err
}

// readFrame performs a single read of up to FrameSize bytes. A short read
// is reported as a plain return (no error) and left to the caller to
// validate via protocol.ValidateFrame — that is a non-fatal "frame too
// short" per spec.md §4.4. err != nil covers any socket failure, read
// timeout, or EOF, which is always fatal.
func (s *Session) readFrame() (frame []byte, err error) {
	s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	buf := make([]byte, protocol.FrameSize)
	n, rerr := s.conn.Read(buf)
	if rerr != nil {
		return nil, rerr
	}
	return buf[:n], nil
}

// readLoop implements spec.md §4.4.
func (s *Session) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := s.readFrame()
		if err != nil {
			s.log.Debug("read error", zap.Error(err))
			return
		}
		if verr := protocol.ValidateFrame(frame); verr != nil {
			reason := "short_frame"
			if verr == protocol.ErrBadTerminator {
				reason = "bad_terminator"
			}
			s.log.Warn("malformed frame, dropping", zap.Error(verr))
			s.deps.Metrics.FramesDropped.WithLabelValues(reason).Inc()
			continue
		}

		switch protocol.Type(frame) {
		case protocol.TypeSPOS:
			s.applyPositionUpdate(frame, protocol.PayloadStartSPOS)
		case protocol.TypePong:
			s.handlePong(frame)
		default:
			s.relayDirected(frame)
		}
	}
}

// applyPositionUpdate implements spec.md §4.5, shared between the JOIN
// frame's embedded initial position (payloadStart = PayloadStartJoin) and
// steady-state SPOS frames (payloadStart = PayloadStartSPOS) — spec.md §9
// open question 4.
func (s *Session) applyPositionUpdate(frame []byte, payloadStart int) {
	newMap, _, kind := protocol.ParsePosition(frame, payloadStart)
	oldMap, hadOldMap := s.currentMap()

	exitTargets, replayTargets, fanoutTargets := s.deps.World.UpdatePosition(s, oldMap, hadOldMap, newMap, kind)
	s.setMap(newMap)

	for _, t := range exitTargets {
		peer, ok := t.(*Session)
		if !ok {
			continue
		}
		s.send(protocol.BuildExitFrame(peer.Nick()))
		peer.send(protocol.BuildExitFrame(s.nick))
		s.deps.Metrics.PacketsRelayed.WithLabelValues("exit").Inc()
	}

	for _, t := range replayTargets {
		peer, ok := t.(*Session)
		if !ok {
			continue
		}
		if last := peer.LastPosition(); last != nil {
			s.send(last)
			s.deps.Metrics.PacketsRelayed.WithLabelValues("replay").Inc()
		}
	}

	tail := protocol.PositionTail(frame, payloadStart)
	rewritten := protocol.BuildPositionFrame(s.nick, s.Latency(), tail)
	s.setLastPosition(rewritten)

	for _, t := range fanoutTargets {
		if peer, ok := t.(*Session); ok {
			peer.send(rewritten)
			s.deps.Metrics.PacketsRelayed.WithLabelValues("position").Inc()
		}
	}
}

// handlePong implements spec.md §4.6. The unresponded-ping counter resets
// whenever any PONG frame arrives, even one with a malformed timestamp —
// receiving the frame at all proves liveness.
func (s *Session) handlePong(frame []byte) {
	defer s.unrespondedPings.Store(0)

	stamped, ok := protocol.ParsePongTimestamp(frame)
	if !ok {
		s.log.Warn("PONG had a non-numeric or unterminated timestamp")
		s.deps.Metrics.FramesDropped.WithLabelValues("bad_pong_timestamp").Inc()
		return
	}

	latencyMs := time.Now().UnixMilli() - stamped
	latency := protocol.FormatLatency(latencyMs)
	s.setLatency(latency)

	observed := latencyMs
	if observed < 0 {
		observed = 0
	}
	s.deps.Metrics.PingLatencyMs.Observe(float64(observed))

	s.send(protocol.BuildControlFrame(s.deps.ServerNick, protocol.TypePNPN, latency))
	s.deps.Metrics.PacketsRelayed.WithLabelValues("control").Inc()
}

// relayDirected implements spec.md §4.4's fallback branch: any type other
// than SPOS/PONG is a request to forward the frame verbatim to a named
// recipient.
func (s *Session) relayDirected(frame []byte) {
	recipient := protocol.Recipient(frame)
	target, ok := s.deps.World.LookupByNick(recipient)
	if !ok {
		s.log.Warn("directed frame for unknown recipient", zap.String("recipient", strings.TrimRight(recipient, " ")))
		s.deps.Metrics.FramesDropped.WithLabelValues("unknown_recipient").Inc()
		return
	}
	if peer, ok := target.(*Session); ok {
		peer.send(frame)
		s.deps.Metrics.PacketsRelayed.WithLabelValues("directed").Inc()
	}
}

// send enqueues frame for the write goroutine. A full queue means a slow
// or stuck peer; the session is torn down rather than let the fan-out
// path block.
func (s *Session) send(frame []byte) {
	select {
	case <-s.closeCh:
		return
	default:
	}
	select {
	case s.outQueue <- frame:
	case <-s.closeCh:
	default:
		s.log.Warn("output queue full, disconnecting slow peer")
		go s.teardown("backpressure")
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case frame := <-s.outQueue:
			if err := s.writeDirect(frame); err != nil {
				s.log.Debug("write error", zap.Error(err))
				go s.teardown("io_error")
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

// Ping implements one tick of spec.md §4.7 for this session: tear down if
// too many pongs are outstanding, otherwise send a PING carrying the
// current epoch-millisecond timestamp.
func (s *Session) Ping(maxMissedPongs int32, nowMillis int64) {
	if s.unrespondedPings.Load() >= maxMissedPongs {
		s.log.Warn("disconnecting due to inactivity")
		s.teardown("missed_pongs")
		return
	}
	s.unrespondedPings.Add(1)
	s.send(protocol.BuildControlFrame(s.deps.ServerNick, protocol.TypePing, protocol.BuildPingPayload(nowMillis)))
}

// close idempotently closes the socket and signals the write goroutine to
// stop, without touching the world (used for pre-admission rejections,
// which never registered anything).
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.conn.Close()
	})
}

// teardown implements spec.md §4.8. It is idempotent and safe to call
// from any goroutine (the Liveness Ticker, this session's own read/write
// loops on I/O failure, or a newer session replacing this one on
// reconnect) — exactly one caller performs the substantive work.
func (s *Session) teardown(reason string) {
	s.teardownOnce.Do(func() {
		s.close()
		if s.nick == "" {
			return
		}

		mapID, hasMap := s.currentMap()
		targets := s.deps.World.Teardown(s, s.nick, mapID, hasMap)

		s.deps.Metrics.Disconnects.WithLabelValues(reason).Inc()
		s.deps.Metrics.SessionsConnected.Dec()

		exitFrame := protocol.BuildExitFrame(s.nick)
		for _, t := range targets {
			if peer, ok := t.(*Session); ok {
				peer.send(exitFrame)
				s.deps.Metrics.PacketsRelayed.WithLabelValues("exit").Inc()
			}
		}

		s.log.Info("session torn down", zap.String("reason", reason))
	})
}
