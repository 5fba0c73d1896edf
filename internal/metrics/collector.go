// Package metrics exposes controller state and counters to Prometheus.
package metrics

import (
	"touch_thermostat/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

// Source is what the collector reads on every scrape.
type Source interface {
	CurrentState() models.ThermostatState
	Stats() models.ControllerStats
}

// Collector reads from the controller at scrape time; it never talks to the device itself.
type Collector struct {
	src Source

	mode        *prometheus.Desc
	action      *prometheus.Desc
	target      *prometheus.Desc
	zone        *prometheus.Desc
	lastRefresh *prometheus.Desc

	refreshes       *prometheus.Desc
	refreshFailures *prometheus.Desc
	decodeFailures  *prometheus.Desc
	emptyResponses  *prometheus.Desc
	commandsSent    *prometheus.Desc
	commandFailures *prometheus.Desc
	mappingWarnings *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(src Source) *Collector {
	const ns = "touch_thermostat"
	labels := []string{"name"}
	desc := func(name, help string, extra ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(ns, "", name), help, append(append([]string{}, labels...), extra...), nil)
	}
	return &Collector{
		src:         src,
		mode:        desc("hvac_mode", "Requested operating mode (1=active)", "mode"),
		action:      desc("hvac_action", "Observed activity (1=current)", "action"),
		target:      desc("target_temperature_celsius", "Target temperature of the active group (celsius)"),
		zone:        desc("zone_active", "Zone enable flag (1=on, 0=off); absent until reported", "zone"),
		lastRefresh: desc("last_refresh_timestamp_seconds", "Unix time of the last successful refresh"),

		refreshes:       desc("refreshes_total", "Refresh attempts"),
		refreshFailures: desc("refresh_failures_total", "Refreshes that left the state untouched"),
		decodeFailures:  desc("decode_failures_total", "Replies that were not valid JSON"),
		emptyResponses:  desc("empty_responses_total", "Connections that returned no bytes"),
		commandsSent:    desc("commands_sent_total", "Command frames written"),
		commandFailures: desc("command_failures_total", "Command frames that could not be written"),
		mappingWarnings: desc("mapping_warnings_total", "Fields skipped because they were missing or malformed"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.mode, c.action, c.target, c.zone, c.lastRefresh,
		c.refreshes, c.refreshFailures, c.decodeFailures, c.emptyResponses,
		c.commandsSent, c.commandFailures, c.mappingWarnings,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.CurrentState()
	stats := c.src.Stats()
	name := st.Name

	for _, m := range []models.HvacMode{models.ModeHeat, models.ModeCool, models.ModeOff} {
		ch <- prometheus.MustNewConstMetric(c.mode, prometheus.GaugeValue, boolValue(st.HvacMode == m), name, string(m))
	}
	for _, a := range []models.HvacAction{models.ActionHeating, models.ActionCooling, models.ActionIdle, models.ActionOff} {
		ch <- prometheus.MustNewConstMetric(c.action, prometheus.GaugeValue, boolValue(st.CurrentAction == a), name, string(a))
	}
	if st.TargetTemperature != nil {
		ch <- prometheus.MustNewConstMetric(c.target, prometheus.GaugeValue, float64(*st.TargetTemperature), name)
	}
	if st.ZoneAActive != nil {
		ch <- prometheus.MustNewConstMetric(c.zone, prometheus.GaugeValue, boolValue(*st.ZoneAActive), name, "a")
	}
	if st.ZoneBActive != nil {
		ch <- prometheus.MustNewConstMetric(c.zone, prometheus.GaugeValue, boolValue(*st.ZoneBActive), name, "b")
	}
	if !stats.LastRefreshAt.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.lastRefresh, prometheus.GaugeValue, float64(stats.LastRefreshAt.Unix()), name)
	}

	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), name)
	}
	counter(c.refreshes, stats.Refreshes)
	counter(c.refreshFailures, stats.RefreshFailures)
	counter(c.decodeFailures, stats.DecodeFailures)
	counter(c.emptyResponses, stats.EmptyResponses)
	counter(c.commandsSent, stats.CommandsSent)
	counter(c.commandFailures, stats.CommandFailures)
	counter(c.mappingWarnings, stats.MappingWarnings)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
