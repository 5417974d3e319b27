// Package metrics exposes watcher activity to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bundlewatch/internal/watcher"
)

const namespace = "bundlewatch"

// Source is the watcher surface the collector reads.
type Source interface {
	State() watcher.State
	Stats() watcher.Stats
}

// Collector turns watcher counters into metrics at scrape time.
type Collector struct {
	source      Source
	subscribers func() int

	checks       *prometheus.Desc
	checkErrors  *prometheus.Desc
	prompts      *prometheus.Desc
	promptErrors *prometheus.Desc
	dismissals   *prometheus.Desc
	reloads      *prometheus.Desc
	lastCheck    *prometheus.Desc
	promptOpen   *prometheus.Desc
	suppressed   *prometheus.Desc
	polling      *prometheus.Desc
	clients      *prometheus.Desc
}

// NewCollector returns a Collector over source. subscribers may be nil.
func NewCollector(source Source, subscribers func() int) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}
	return &Collector{
		source:       source,
		subscribers:  subscribers,
		checks:       desc("checks_total", "Successful remote fingerprint checks"),
		checkErrors:  desc("check_errors_total", "Failed remote fingerprint checks"),
		prompts:      desc("prompts_total", "Update prompts raised"),
		promptErrors: desc("prompt_errors_total", "Update prompts that failed to show"),
		dismissals:   desc("dismissals_total", "Update prompts dismissed by the user"),
		reloads:      desc("reloads_total", "Reloads performed"),
		lastCheck:    desc("last_check_timestamp_seconds", "Unix time of the most recent check"),
		promptOpen:   desc("prompt_open", "1 while an update prompt is shown"),
		suppressed:   desc("suppressed", "1 after a dismissal until the next reload"),
		polling:      desc("polling", "1 while the poll loop runs"),
		clients:      desc("event_subscribers", "Connected websocket event subscribers"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.checks, c.checkErrors, c.prompts, c.promptErrors, c.dismissals, c.reloads,
		c.lastCheck, c.promptOpen, c.suppressed, c.polling, c.clients,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	state := c.source.State()

	ch <- prometheus.MustNewConstMetric(c.checks, prometheus.CounterValue, float64(stats.Checks))
	ch <- prometheus.MustNewConstMetric(c.checkErrors, prometheus.CounterValue, float64(stats.CheckErrors))
	ch <- prometheus.MustNewConstMetric(c.prompts, prometheus.CounterValue, float64(stats.Prompts))
	ch <- prometheus.MustNewConstMetric(c.promptErrors, prometheus.CounterValue, float64(stats.PromptErrors))
	ch <- prometheus.MustNewConstMetric(c.dismissals, prometheus.CounterValue, float64(stats.Dismissals))
	ch <- prometheus.MustNewConstMetric(c.reloads, prometheus.CounterValue, float64(stats.Reloads))

	var last float64
	if !stats.LastCheck.IsZero() {
		last = float64(stats.LastCheck.UnixMilli()) / 1000
	}
	ch <- prometheus.MustNewConstMetric(c.lastCheck, prometheus.GaugeValue, last)
	ch <- prometheus.MustNewConstMetric(c.promptOpen, prometheus.GaugeValue, boolValue(state.PromptOpen()))
	ch <- prometheus.MustNewConstMetric(c.suppressed, prometheus.GaugeValue, boolValue(state.Suppressed))
	ch <- prometheus.MustNewConstMetric(c.polling, prometheus.GaugeValue, boolValue(state.Phase != watcher.PhaseIdle))

	subscribers := 0
	if c.subscribers != nil {
		subscribers = c.subscribers()
	}
	ch <- prometheus.MustNewConstMetric(c.clients, prometheus.GaugeValue, float64(subscribers))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// NewRegistry returns a registry with the watcher collector plus the Go and
// process collectors.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
