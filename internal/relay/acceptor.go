package relay

import (
	"context"
	"net"

	"go.uber.org/zap"
)

// Acceptor listens for TCP connections and spawns a Session per
// connection, grounded on the teacher's Server/AcceptLoop split but
// adapted to context-based shutdown: there is no central game loop here,
// so each Session runs and tears itself down independently against the
// shared World.
type Acceptor struct {
	listener net.Listener
	deps     *Deps
	log      *zap.Logger
}

// Listen binds bindAddr and returns an Acceptor ready to Run.
func Listen(bindAddr string, deps *Deps) (*Acceptor, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	return &Acceptor{listener: ln, deps: deps, log: deps.Log}, nil
}

// Addr returns the listener's bound address.
func (a *Acceptor) Addr() net.Addr {
	return a.listener.Addr()
}

// Run accepts connections until ctx is cancelled, spawning one goroutine
// per connection to run Session.Serve. It returns nil on a clean shutdown
// (ctx cancellation closing the listener) and the accept error otherwise.
func (a *Acceptor) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		a.listener.Close()
	}()

	for {
		conn, err := a.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				a.log.Error("accept failed", zap.Error(err))
				return err
			}
		}

		sess := NewSession(conn, a.deps)
		a.log.Info("connection accepted", zap.String("remote", conn.RemoteAddr().String()))
		go sess.Serve(ctx)
	}
}
