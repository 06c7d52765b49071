// Package metrics exposes bridge counters on an optional local listener.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	FramesTotal         prometheus.Counter
	FramesRejectedTotal prometheus.Counter
	PublishesTotal      prometheus.Counter
	PublishErrorsTotal  prometheus.Counter
	ReconnectsTotal     prometheus.Counter
	SnapshotsTotal      *prometheus.CounterVec
	LastPublishUnix     prometheus.Gauge
}

func New() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enderbridge",
			Name:      "frames_total",
			Help:      "Telemetry frames received over the websocket",
		}),
		FramesRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enderbridge",
			Name:      "frames_rejected_total",
			Help:      "Frames skipped because they failed to parse",
		}),
		PublishesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enderbridge",
			Name:      "publishes_total",
			Help:      "Records accepted by the change filter and published",
		}),
		PublishErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enderbridge",
			Name:      "publish_errors_total",
			Help:      "Publish attempts that returned an error",
		}),
		ReconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enderbridge",
			Name:      "reconnects_total",
			Help:      "Websocket reconnect attempts",
		}),
		SnapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enderbridge",
			Name:      "snapshots_total",
			Help:      "Snapshot fetches by outcome",
		}, []string{"outcome"}),
		LastPublishUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "enderbridge",
			Name:      "last_publish_timestamp_seconds",
			Help:      "Unix time of the last successful publish",
		}),
	}
	r.MustRegister(
		m.FramesTotal,
		m.FramesRejectedTotal,
		m.PublishesTotal,
		m.PublishErrorsTotal,
		m.ReconnectsTotal,
		m.SnapshotsTotal,
		m.LastPublishUnix,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
