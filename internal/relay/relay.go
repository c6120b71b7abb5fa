package relay

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/PowerMeep/GBA-PK-MMO/internal/config"
	"github.com/PowerMeep/GBA-PK-MMO/internal/world"
)

// Relay owns the full set of long-running components — the Acceptor, the
// Liveness Ticker, and the metrics HTTP server — and coordinates their
// lifetimes with an errgroup the way the rest of the retrieval pack's
// network services do: one goroutine per component, the first error (or
// ctx cancellation) triggers shutdown of the others.
type Relay struct {
	acceptor *Acceptor
	ticker   *Ticker
	metrics  *Metrics
	log      *zap.Logger

	metricsAddr string
}

// New wires a Relay from configuration: builds the World, Metrics, an
// Acceptor bound to cfg.Port, and a Ticker running at cfg.PingTime.
func New(cfg *config.Config, log *zap.Logger) (*Relay, error) {
	serverNick, err := cfg.ServerNick()
	if err != nil {
		return nil, err
	}

	w := world.NewWorld(cfg.MaxPlayers, log)

	if cfg.AdjacencySeedFile != "" {
		n, err := world.LoadSeedFile(cfg.AdjacencySeedFile, w.Graph)
		if err != nil {
			return nil, err
		}
		log.Info("loaded adjacency seed file", zap.String("path", cfg.AdjacencySeedFile), zap.Int("pairs", n))
	}

	metrics := NewMetrics(prometheus.DefaultRegisterer)

	deps := &Deps{
		World:      w,
		Metrics:    metrics,
		Log:        log,
		ServerNick: serverNick,
		Games:      cfg.Games(),
	}

	acceptor, err := Listen(boundAddr(cfg.Port), deps)
	if err != nil {
		return nil, err
	}

	ticker := NewTicker(deps, time.Duration(cfg.PingTime)*time.Second, int32(cfg.MaxMissedPongs))

	return &Relay{
		acceptor:    acceptor,
		ticker:      ticker,
		metrics:     metrics,
		log:         log,
		metricsAddr: cfg.MetricsAddr,
	}, nil
}

// Addr returns the TCP address the Acceptor is bound to.
func (r *Relay) Addr() string {
	return r.acceptor.Addr().String()
}

// Run blocks until ctx is cancelled or any component fails, then shuts
// every component down and returns the first error encountered (nil on a
// clean ctx-cancellation shutdown).
func (r *Relay) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return r.acceptor.Run(ctx)
	})
	group.Go(func() error {
		return r.ticker.Run(ctx)
	})

	if r.metricsAddr != "" {
		srv := &http.Server{Addr: r.metricsAddr, Handler: promhttp.Handler()}
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		group.Go(func() error {
			r.log.Info("metrics listening", zap.String("addr", r.metricsAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	return group.Wait()
}

func boundAddr(port int) string {
	return ":" + strconv.Itoa(port)
}
