package main

import (
	"touch_thermostat/internal/config"
	"touch_thermostat/internal/logger"
	"touch_thermostat/internal/service"
	"touch_thermostat/internal/transport"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "touch-thermostat",
	Short: "Rinnai Touch thermostat adapter",
	Long: `touch-thermostat talks to a Rinnai Touch WiFi controller over its local TCP
port and exposes it as a thermostat: HTTP API, WebSocket stream, MQTT and
Prometheus metrics.

Without a subcommand it runs "serve". Settings come from configs/config.yml
(or --config) and TOUCH_* environment variables, e.g. TOUCH_CONTROLLER_HOST.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default configs/config.yml)")

	rootCmd.AddCommand(serveCmd, statusCmd, setTempCmd, setModeCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// newDialer builds the controller transport from config.
func newDialer(cfg *config.Config) *transport.TCPDialer {
	c := cfg.Controller
	return transport.NewTCPDialer(c.Host, c.Port, transport.Options{
		ConnectSettle: c.ConnectSettle,
		ReadSettle:    c.ReadSettle,
		DialTimeout:   c.DialTimeout,
		IOTimeout:     c.IOTimeout,
		BufferSize:    c.ReadBuffer,
	})
}

func thermostatConfig(cfg *config.Config) service.ThermostatConfig {
	return service.ThermostatConfig{
		Name:          cfg.Controller.Name,
		CommandSettle: cfg.Controller.CommandSettle,
	}
}

// loadConfig reads the config and builds the process logger from it.
func loadConfig(level string) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if level == "" {
		level = cfg.Log.Level
	}
	return cfg, logger.Get(level, cfg.Log.Format), nil
}
