package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"touch_thermostat/internal/bridge"
	"touch_thermostat/internal/config"
	"touch_thermostat/internal/handlers"
	"touch_thermostat/internal/logger"
	"touch_thermostat/internal/metrics"
	"touch_thermostat/internal/repository"
	"touch_thermostat/internal/repository/db"
	"touch_thermostat/internal/server"
	"touch_thermostat/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the controller and serve HTTP, WebSocket, MQTT and metrics",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig("")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		log.Errorw("invalid config", "err", err)
		return err
	}

	sqlDB, err := openDB(cfg, log)
	if err != nil {
		log.Errorw("failed to init sqlite", "err", err)
		return err
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	dialer := newDialer(cfg)
	services := service.NewService(repos, dialer, service.Config{
		Thermostat: thermostatConfig(cfg),
		Auth:       service.AuthConfig{SigningKey: cfg.Auth.SigningKey, TokenTTL: cfg.Auth.TokenTTL},
		Poller:     service.PollerConfig{Retention: cfg.DB.Retention},
	}, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewCollector(services.Thermostat),
	)
	apiHandler := handlers.NewHandler(services, log, handlers.WithMetrics(reg))

	// context for background goroutines
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	log.Infow("controller configured", "addr", dialer.Addr(), "poll_interval", cfg.Controller.PollInterval)
	go services.Poller.Run(ctx, cfg.Controller.PollInterval)

	if cfg.MQTT.Enabled {
		disconnect := startBridge(ctx, cfg, services, log)
		defer disconnect()
	}

	srv := server.New(cfg.Port, apiHandler.InitRoutes())
	errc := make(chan error, 1)
	go func() {
		log.Infow("http listening", "addr", srv.Addr())
		errc <- srv.Run()
	}()

	return waitForShutdown(cancel, srv, errc, log)
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	path := cfg.DB.Path
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "touch.db")
		path = "touch.db"
	}
	return db.InitDB(path)
}

// startBridge connects to the broker. A broker that is down does not stop the service.
func startBridge(ctx context.Context, cfg *config.Config, services *service.Service, log *logger.Logger) func() {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, disconnect, err := bridge.Connect(connectCtx, bridge.Config{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		QoS:         cfg.MQTT.QoS,
	}, services.Thermostat, log)
	if err != nil {
		log.Errorw("mqtt bridge disabled", "broker", cfg.MQTT.Broker, "err", err)
		return func() {}
	}
	return disconnect
}

// waitForShutdown blocks until a termination signal or a server failure, then shuts down.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, errc <-chan error, log *logger.Logger) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit:
		log.Infow("shutting down server...")
	case runErr = <-errc:
		log.Errorw("http server stopped", "err", runErr)
	}

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
		return err
	}
	return runErr
}
