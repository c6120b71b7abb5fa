// Package protocol implements the fixed-width 7-bit ASCII wire format used
// between game clients and the relay: every frame is exactly 64 bytes,
// parsed and built by byte offset rather than by tokenizing.
package protocol

import (
	"bytes"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// FrameSize is the fixed length of every frame on the wire.
const FrameSize = 64

// Terminator is the literal final byte of every frame.
const Terminator = byte('U')

// Padding fills unused trailing space in server-built control frames.
const Padding = byte('F')

// Frame type tags (bytes 8:12 of every frame).
const (
	TypeJoin = "JOIN"
	TypeSPOS = "SPOS"
	TypePing = "PING"
	TypePong = "PONG"
	TypeStrt = "STRT"
	TypeDeny = "DENY"
	TypeExit = "EXIT"
	TypePNPN = "PNPN"
)

// DENY reason codes (4-byte payload).
const (
	ReasonMalformed  = "MALF"
	ReasonBadChars   = "CHRS"
	ReasonGame       = "GAME"
	ReasonNameTaken  = "NAME"
	ReasonServerFull = "FULL"
)

// Payload field offsets, relative to the start of the position payload
// (frame[payloadStart:]). JOIN and SPOS carry the same field layout but
// the payload begins at a different frame offset in each (see
// PayloadStartJoin / PayloadStartSPOS) — keeping both in this single file
// with an explicit payloadStart parameter avoids the ad-hoc shift the
// original server applied only to JOIN.
const (
	payloadMapIDOffset     = 21
	payloadMapIDWidth      = 6
	payloadPrevMapIDOffset = 27
	payloadPrevMapIDWidth  = 6
	payloadTransitionOffset = 33
	payloadTailOffset       = 4 // skips the latency/placeholder slot shared by both frame kinds
)

// PayloadStartSPOS is the frame offset at which a client-sent SPOS frame's
// position payload begins (right after the 8-byte nick + 4-byte type).
const PayloadStartSPOS = 12

// PayloadStartJoin is the frame offset at which a JOIN frame's embedded
// initial-position payload begins (after nick + type + version + game tag).
const PayloadStartJoin = 20

// Header field offsets.
const (
	nickOffset    = 0
	nickWidth     = 8
	typeOffset    = 8
	typeWidth     = 4
	versionOffset = 12
	versionWidth  = 4
	gameOffset    = 16
	gameWidth     = 4
	recipientOffset = 12
	recipientWidth  = 8
)

var (
	// ErrShortFrame indicates fewer than FrameSize bytes were read.
	ErrShortFrame = errors.New("protocol: frame shorter than 64 bytes")
	// ErrBadTerminator indicates the frame's final byte was not 'U'.
	ErrBadTerminator = errors.New("protocol: frame missing U terminator")
	// ErrInvalidNickChars indicates a nick contained a disallowed character.
	ErrInvalidNickChars = errors.New("protocol: nick contains invalid characters")
)

// nickCharset matches spec.md's allowed nick character class.
var nickCharset = regexp.MustCompile(`^[a-zA-Z0-9._ -]+$`)

// MapId is an opaque 6-character map identifier, compared bytewise.
type MapId string

// TransitionKind classifies a reported map change.
type TransitionKind byte

const (
	TransitionNormal  TransitionKind = '0'
	TransitionFadeout TransitionKind = '1'
)

// ValidateFrame checks that data is at least FrameSize bytes and that byte
// FrameSize-1 is the terminator. It does not validate field contents.
func ValidateFrame(data []byte) error {
	if len(data) < FrameSize {
		return ErrShortFrame
	}
	if data[FrameSize-1] != Terminator {
		return ErrBadTerminator
	}
	return nil
}

// Type returns the 4-byte type tag of a frame.
func Type(frame []byte) string {
	return string(frame[typeOffset : typeOffset+typeWidth])
}

// Nick returns the 8-byte originating-nick field of a frame, unmodified
// (already left-justified and space-padded by the sender).
func Nick(frame []byte) string {
	return string(frame[nickOffset : nickOffset+nickWidth])
}

// Recipient returns the 8-byte directed-relay recipient field.
func Recipient(frame []byte) string {
	return string(frame[recipientOffset : recipientOffset+recipientWidth])
}

// Version parses the 4-digit decimal client version field of a JOIN frame.
func Version(frame []byte) (int, error) {
	return strconv.Atoi(string(frame[versionOffset : versionOffset+versionWidth]))
}

// GameTag returns the 4-byte game tag field of a JOIN frame.
func GameTag(frame []byte) string {
	return string(frame[gameOffset : gameOffset+gameWidth])
}

// PadNick validates raw against the nick character class and left-justifies
// it to nickWidth, space-padded. Used for nicks sourced from configuration
// (e.g. SERVER_NAME) rather than the wire, where the sender hasn't already
// padded the field.
func PadNick(raw string) (string, error) {
	if raw == "" {
		raw = " "
	}
	if len(raw) > nickWidth {
		raw = raw[:nickWidth]
	}
	if !nickCharset.MatchString(raw) {
		return "", ErrInvalidNickChars
	}
	return raw + strings.Repeat(" ", nickWidth-len(raw)), nil
}

// ValidateNickChars reports whether a wire-sourced (already 8-byte padded)
// nick matches the allowed character class.
func ValidateNickChars(nick string) bool {
	return nickCharset.MatchString(nick)
}

// ParsePosition extracts the current map, previous map, and transition kind
// from a position payload, given the frame offset at which that payload
// begins (PayloadStartSPOS for a client SPOS frame, PayloadStartJoin for a
// JOIN frame's embedded initial position).
func ParsePosition(frame []byte, payloadStart int) (mapID, prevMapID MapId, kind TransitionKind) {
	p := frame[payloadStart:]
	mapID = MapId(p[payloadMapIDOffset : payloadMapIDOffset+payloadMapIDWidth])
	prevMapID = MapId(p[payloadPrevMapIDOffset : payloadPrevMapIDOffset+payloadPrevMapIDWidth])
	kind = TransitionKind(p[payloadTransitionOffset])
	return mapID, prevMapID, kind
}

// PositionTail returns the portion of a position payload after its
// leading 4-byte latency/placeholder slot — the part of the frame that is
// carried forward verbatim into the server's rewritten outbound frame.
func PositionTail(frame []byte, payloadStart int) []byte {
	p := frame[payloadStart:]
	if len(p) <= payloadTailOffset {
		return nil
	}
	return p[payloadTailOffset:]
}

// BuildControlFrame builds a server-originated control frame: sender nick,
// 4-byte type, payload, F-padded, terminated by U. Matches the original
// send_packet layout used for STRT/DENY/PING/PNPN.
func BuildControlFrame(senderNick, ptype, payload string) []byte {
	buf := make([]byte, 0, FrameSize)
	buf = append(buf, []byte(senderNick)...)
	buf = append(buf, []byte(ptype)...)
	buf = append(buf, []byte(payload)...)
	for len(buf) < FrameSize-1 {
		buf = append(buf, Padding)
	}
	buf = buf[:FrameSize-1]
	buf = append(buf, Terminator)
	return buf
}

// BuildExitFrame builds an EXIT bulletin naming the departing player.
func BuildExitFrame(departingNick string) []byte {
	buf := make([]byte, 0, FrameSize)
	buf = append(buf, []byte(departingNick)...)
	buf = append(buf, []byte(TypeExit)...)
	buf = append(buf, bytes.Repeat([]byte{'0'}, FrameSize-len(departingNick)-len(TypeExit)-2)...)
	buf = append(buf, Padding, Terminator)
	return buf
}

// BuildPositionFrame rewrites a relayed position frame: originating nick,
// SPOS type, the session's current latency string, and the tail of the
// original payload, right-padded with U (not F — this is the one frame
// kind padded that way) out to FrameSize.
func BuildPositionFrame(originNick, latency string, tail []byte) []byte {
	buf := make([]byte, 0, FrameSize)
	buf = append(buf, []byte(originNick)...)
	buf = append(buf, []byte(TypeSPOS)...)
	buf = append(buf, []byte(latency)...)
	room := FrameSize - len(buf)
	if len(tail) > room {
		tail = tail[:room]
	}
	buf = append(buf, tail...)
	for len(buf) < FrameSize {
		buf = append(buf, Terminator)
	}
	return buf
}

// FormatLatency clamps ms to [0, 9999] and renders it as exactly 4 decimal
// digits, zero-padded.
func FormatLatency(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	if ms > 9999 {
		ms = 9999
	}
	return padLeftZero(strconv.FormatInt(ms, 10), 4)
}

func padLeftZero(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// ParsePongTimestamp extracts the decimal ASCII timestamp a PONG frame
// echoes back, starting at byte 12 and terminated by the first Padding
// byte. Reports ok=false if no padding byte is found or the digits are
// non-numeric.
func ParsePongTimestamp(frame []byte) (ms int64, ok bool) {
	region := frame[recipientOffset:]
	idx := bytes.IndexByte(region, Padding)
	if idx < 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(string(region[:idx]), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// BuildPingPayload renders an epoch-millisecond timestamp as decimal ASCII.
func BuildPingPayload(epochMillis int64) string {
	return strconv.FormatInt(epochMillis, 10)
}
