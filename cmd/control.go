package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"touch_thermostat/internal/logger"
	"touch_thermostat/internal/service"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read the controller once and print its state as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		th, err := newOneShotThermostat()
		if err != nil {
			return err
		}
		if err := th.Refresh(cmd.Context()); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), th.CurrentState())
	},
}

var setTempCmd = &cobra.Command{
	Use:   "set-temp <celsius>",
	Short: "Set the target temperature of the active group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		celsius, err := parseCelsiusArg(args[0])
		if err != nil {
			return err
		}
		th, err := newOneShotThermostat()
		if err != nil {
			return err
		}
		// The active group is only known after a read.
		if err := th.Refresh(cmd.Context()); err != nil {
			return err
		}
		if err := th.SetTargetTemperature(cmd.Context(), service.TemperatureParams{Celsius: &celsius}); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), th.CurrentState())
	},
}

var setModeCmd = &cobra.Command{
	Use:       "set-mode <heat|cool|off>",
	Short:     "Switch the controller mode",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"heat", "cool", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		th, err := newOneShotThermostat()
		if err != nil {
			return err
		}
		if err := th.Refresh(cmd.Context()); err != nil {
			return err
		}
		if err := th.SetHvacMode(cmd.Context(), service.ModeParams{Mode: args[0]}); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), th.CurrentState())
	},
}

// newOneShotThermostat builds a controller without the audit log.
// Logs stay at warn so the JSON on stdout is readable.
func newOneShotThermostat() (*service.ThermostatService, error) {
	cfg, log, err := loadConfig(logger.WarnLevel)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateController(); err != nil {
		return nil, err
	}
	return service.NewThermostatService(thermostatConfig(cfg), newDialer(cfg), nil, log), nil
}

func parseCelsiusArg(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), ".0"))
	if err != nil {
		return 0, fmt.Errorf("temperature %q is not a whole number of degrees", s)
	}
	return n, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
