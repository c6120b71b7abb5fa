package relay

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/PowerMeep/GBA-PK-MMO/internal/protocol"
)

func TestAcceptorAcceptsAndShutsDownOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	deps := testDeps(t)
	acceptor, err := Listen("127.0.0.1:0", deps)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- acceptor.Run(ctx) }()

	conn, err := net.DialTimeout("tcp", acceptor.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	conn.Write(buildJoinFrame("alice", "1020", "BPR1", "M00001", "", '0'))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, protocol.FrameSize)
	if _, err := readFull(conn, buf); err != nil {
		t.Fatalf("read STRT: %v", err)
	}
	if protocol.Type(buf) != protocol.TypeStrt {
		t.Fatalf("expected STRT, got %q", protocol.Type(buf))
	}

	conn.Close()
	cancel()

	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("acceptor did not shut down after context cancellation")
	}

	deadline := time.Now().Add(2 * time.Second)
	for deps.World.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}
