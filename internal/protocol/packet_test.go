package protocol

import (
	"strings"
	"testing"
)

func mustPad(t *testing.T, raw string) string {
	t.Helper()
	padded, err := PadNick(raw)
	if err != nil {
		t.Fatalf("PadNick(%q): %v", raw, err)
	}
	return padded
}

func TestValidateFrame(t *testing.T) {
	ok := append([]byte(strings.Repeat("F", FrameSize-1)), 'U')
	if err := ValidateFrame(ok); err != nil {
		t.Fatalf("expected valid frame, got %v", err)
	}

	short := ok[:FrameSize-1]
	if err := ValidateFrame(short); err != ErrShortFrame {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}

	badTerm := append([]byte(strings.Repeat("F", FrameSize-1)), 'X')
	if err := ValidateFrame(badTerm); err != ErrBadTerminator {
		t.Fatalf("expected ErrBadTerminator, got %v", err)
	}
}

func TestPadNick(t *testing.T) {
	padded := mustPad(t, "alice")
	if padded != "alice   " || len(padded) != 8 {
		t.Fatalf("got %q", padded)
	}

	if _, err := PadNick("bad!nick"); err != ErrInvalidNickChars {
		t.Fatalf("expected ErrInvalidNickChars, got %v", err)
	}
}

func TestValidateNickChars(t *testing.T) {
	if !ValidateNickChars("alice   ") {
		t.Fatal("expected valid nick to pass")
	}
	if ValidateNickChars("bad!nick") {
		t.Fatal("expected invalid nick to fail")
	}
}

func buildJoinFrame(nick, version, game, mapID, prevMapID string, kind TransitionKind) []byte {
	buf := make([]byte, FrameSize)
	copy(buf[0:8], nick)
	copy(buf[8:12], TypeJoin)
	copy(buf[12:16], version)
	copy(buf[16:20], game)
	payload := buf[20:63]
	for i := range payload {
		payload[i] = '0'
	}
	copy(payload[payloadMapIDOffset:], mapID)
	copy(payload[payloadPrevMapIDOffset:], prevMapID)
	payload[payloadTransitionOffset] = byte(kind)
	buf[63] = 'U'
	return buf
}

func TestParsePositionJoin(t *testing.T) {
	frame := buildJoinFrame("alice   ", "1020", "BPR1", "M00001", "000000", TransitionNormal)
	mapID, prevMapID, kind := ParsePosition(frame, PayloadStartJoin)
	if mapID != "M00001" || prevMapID != "000000" || kind != TransitionNormal {
		t.Fatalf("got map=%q prev=%q kind=%c", mapID, prevMapID, kind)
	}
}

func TestParsePositionSPOS(t *testing.T) {
	frame := make([]byte, FrameSize)
	copy(frame[0:8], "alice   ")
	copy(frame[8:12], TypeSPOS)
	copy(frame[12:16], "0000") // client-sent latency placeholder
	payload := frame[12:63]
	for i := range payload {
		payload[i] = '0'
	}
	copy(payload[payloadMapIDOffset:], "M00002")
	copy(payload[payloadPrevMapIDOffset:], "M00001")
	payload[payloadTransitionOffset] = byte(TransitionFadeout)
	frame[63] = 'U'

	mapID, prevMapID, kind := ParsePosition(frame, PayloadStartSPOS)
	if mapID != "M00002" || prevMapID != "M00001" || kind != TransitionFadeout {
		t.Fatalf("got map=%q prev=%q kind=%c", mapID, prevMapID, kind)
	}
}

func TestBuildPositionFrame(t *testing.T) {
	tail := []byte(strings.Repeat("x", 47))
	frame := BuildPositionFrame("alice   ", "0042", tail)
	if len(frame) != FrameSize {
		t.Fatalf("len = %d, want %d", len(frame), FrameSize)
	}
	if Type(frame) != TypeSPOS {
		t.Fatalf("type = %q", Type(frame))
	}
	if string(frame[12:16]) != "0042" {
		t.Fatalf("latency = %q", frame[12:16])
	}
	if frame[FrameSize-1] != 'U' {
		t.Fatalf("final byte = %q, want U", frame[FrameSize-1])
	}
}

func TestBuildControlFrame(t *testing.T) {
	frame := BuildControlFrame("servname", TypeDeny, ReasonBadChars)
	if len(frame) != FrameSize {
		t.Fatalf("len = %d", len(frame))
	}
	if Type(frame) != TypeDeny {
		t.Fatalf("type = %q", Type(frame))
	}
	if frame[FrameSize-1] != 'U' {
		t.Fatal("missing terminator")
	}
	if string(frame[12:16]) != ReasonBadChars {
		t.Fatalf("payload = %q", frame[12:16])
	}
}

func TestBuildExitFrame(t *testing.T) {
	frame := BuildExitFrame("bob     ")
	if len(frame) != FrameSize {
		t.Fatalf("len = %d", len(frame))
	}
	if Nick(frame) != "bob     " || Type(frame) != TypeExit {
		t.Fatalf("nick=%q type=%q", Nick(frame), Type(frame))
	}
	if frame[FrameSize-1] != 'U' {
		t.Fatal("missing terminator")
	}
}

func TestFormatLatency(t *testing.T) {
	cases := map[int64]string{
		0:     "0000",
		42:    "0042",
		9999:  "9999",
		10050: "9999",
		-5:    "0000",
	}
	for in, want := range cases {
		if got := FormatLatency(in); got != want {
			t.Errorf("FormatLatency(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestParsePongTimestamp(t *testing.T) {
	frame := make([]byte, FrameSize)
	copy(frame[12:], "1700000000000")
	for i := 12 + len("1700000000000"); i < FrameSize; i++ {
		frame[i] = 'F'
	}
	frame[FrameSize-1] = 'U'

	ms, ok := ParsePongTimestamp(frame)
	if !ok || ms != 1700000000000 {
		t.Fatalf("ms=%d ok=%v", ms, ok)
	}

	bad := make([]byte, FrameSize)
	copy(bad[12:], "not-a-number")
	for i := 12 + len("not-a-number"); i < FrameSize; i++ {
		bad[i] = 'F'
	}
	if _, ok := ParsePongTimestamp(bad); ok {
		t.Fatal("expected non-numeric timestamp to fail")
	}

	noPad := make([]byte, FrameSize)
	copy(noPad[12:], "12345")
	if _, ok := ParsePongTimestamp(noPad); ok {
		t.Fatal("expected missing padding byte to fail")
	}
}
