// Command quicktabsd is a standalone demonstration of the
// synchronization core: it bootstraps a Core over an in-memory
// platform, serves the push channel over a websocket, and drives a
// couple of sample mutations so a operator can watch InitBarrier,
// the StateStore, and the Broadcaster work end to end.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chunkynosher/quicktabs/internal/broadcast"
	"github.com/chunkynosher/quicktabs/internal/logging"
	"github.com/chunkynosher/quicktabs/internal/platform"
	"github.com/chunkynosher/quicktabs/internal/protocol"
	"github.com/chunkynosher/quicktabs/internal/transport"
	"github.com/chunkynosher/quicktabs/pkg/quicktabs"
)

func main() {
	addr := flag.String("addr", ":8765", "push channel listen address")
	dev := flag.Bool("dev", false, "use a human-readable development logger")
	flag.Parse()

	logger := logging.New()
	if *dev {
		logger = logging.NewDevelopment()
	}

	mem := platform.NewMemory()
	core := quicktabs.New(mem.Storage(), quicktabs.WithLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outcome := core.Bootstrap(ctx)
	if outcome.Err != nil {
		logger.Error("bootstrap failed", logging.Err(outcome.Err))
		os.Exit(1)
	}
	logger.Info("bootstrap complete",
		logging.Bool("minimal", outcome.Minimal),
		logging.Bool("migrationRan", outcome.MigrationRan),
		logging.String("migrationFrom", outcome.MigrationFrom))

	mux := http.NewServeMux()
	mux.HandleFunc("/push", func(w http.ResponseWriter, r *http.Request) {
		observerID := broadcast.ObserverID(r.URL.Query().Get("id"))
		if observerID == "" {
			http.Error(w, "missing id query parameter", http.StatusBadRequest)
			return
		}
		conn, err := transport.Upgrade(w, r, observerID, logger)
		if err != nil {
			logger.Warn("push upgrade failed", logging.Err(err))
			return
		}
		defer conn.Close()

		core.Coordinator.Observers().Register(conn.Target())
		defer core.Coordinator.Observers().Unregister(observerID)

		conn.ReadLoop(r.Context(), func(payload []byte) {
			logger.Debug("push: inbound message ignored in demo", logging.Int("bytes", len(payload)))
		})
	})

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Info("listening", logging.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", logging.Err(err))
		}
	}()

	go runSampleTraffic(ctx, core, logger)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	core.Shutdown()
}

// runSampleTraffic exercises QT_CREATED and QT_POSITION_CHANGED every
// few seconds so a connected push-channel client has something to
// observe without a real browser driving it.
func runSampleTraffic(ctx context.Context, core *quicktabs.Core, logger logging.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	originTabID := 1
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			env := quicktabs.NewEnvelope(protocol.TypeCreated, map[string]any{
				"quickTab": map[string]any{
					"originTabId": float64(originTabID),
					"url":         "https://example.com/demo",
					"position":    map[string]any{"x": float64(20), "y": float64(20)},
					"size":        map[string]any{"w": float64(400), "h": float64(300)},
				},
			})
			resp := core.Dispatch(ctx, env)
			if !resp.Success {
				logger.Warn("sample QT_CREATED rejected", logging.String("error", resp.Error))
				continue
			}
			logger.Info("sample quick tab created", logging.Any("quickTabId", resp.Fields["quickTabId"]))
			originTabID++
		}
	}
}
