package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"

	"apinode/internal/config"
	"apinode/internal/db"
	"apinode/internal/downstream"
	"apinode/internal/http/handlers"
	appmw "apinode/internal/http/middleware"
)

var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the HTTP server",
	RunE:    runServe,
}

func init() {
	RootCmd.AddCommand(ServeCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	return serve(cmd.Context(), cfg, log)
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log.WithFields(logrus.Fields{
		"tls_insecure": cfg.DatabaseInsecureTLS,
		"max_conns":    cfg.DatabaseMaxConns,
	}).Info("database configuration loaded")

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	defer pool.Close()
	log.Info("database connection pool created")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := pool.RegisterMetrics(reg); err != nil {
		return err
	}

	store := db.NewRequestStore(pool.DB(), handlers.APIName)
	caller := downstream.NewClient(cfg.GolangServiceURL, cfg.GolangServiceTimeout, downstream.WithMetrics(reg))
	log.WithField("url", caller.URL()).Info("golang service configured")

	r := handlers.Routes(store, caller, log, handlers.NewMetrics(reg), reg)

	// Global middleware chain: request id, access log, instrumentation, then router
	handler := appmw.RequestID(
		handlers.RequestLogger(log)(
			appmw.Instrument(appmw.NewHTTPMetrics(reg))(r.Handler),
		),
	)

	srv := &fasthttp.Server{
		Handler: handler,
		Name:    "api-node",
	}

	superviseCtx, stopSupervisor := context.WithCancel(ctx)
	defer stopSupervisor()
	fatal := pool.Supervise(superviseCtx, cfg.PoolCheckInterval)

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("api-node listening on %s", cfg.ListenAddr())
		serveErr <- srv.ListenAndServe(cfg.ListenAddr())
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	for {
		select {
		case s := <-sig:
			log.Infof("%s signal received: closing HTTP server", s)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			log.Info("HTTP server closed")
			return nil

		case err, ok := <-fatal:
			if !ok {
				fatal = nil
				continue
			}
			// A broken pool is not recovered in-process; exit non-zero and
			// let the orchestrator restart us.
			log.WithError(err).Error("unexpected error on idle database connection")
			return err

		case err := <-serveErr:
			return fmt.Errorf("server error: %w", err)
		}
	}
}
