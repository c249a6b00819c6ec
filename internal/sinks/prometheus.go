package sinks

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/fleetwatch-core/internal/device"
)

const metricsNamespace = "fleetwatch"

// FleetSource is the read side of the engine scraped by PrometheusExporter.
// *device.Engine satisfies it.
type FleetSource interface {
	GetAll() []device.DeviceState
	HistoryLen() int
	SubscriberCount() int
}

// PrometheusExporter counts change details as they are dispatched and
// reports fleet gauges read from the engine at scrape time.
type PrometheusExporter struct {
	source FleetSource

	changes *prometheus.CounterVec
	events  prometheus.Counter

	devicesDesc   *prometheus.Desc
	statusDesc    *prometheus.Desc
	historyDesc   *prometheus.Desc
	listenersDesc *prometheus.Desc
}

// NewPrometheusExporter creates an exporter reading gauges from source.
// Call Register before serving the registry.
func NewPrometheusExporter(source FleetSource) *PrometheusExporter {
	return &PrometheusExporter{
		source: source,
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "status_changes_total",
			Help:      "Change details emitted, by change type and severity.",
		}, []string{"type", "severity"}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "status_change_events_total",
			Help:      "Status change events committed to history.",
		}),
		devicesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "devices"),
			"Units by condition (total, online, offline, alerts, alarms, unhealthy).",
			[]string{"condition"}, nil,
		),
		statusDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "devices_by_status"),
			"Units by reported status.",
			[]string{"status"}, nil,
		),
		historyDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "history_events"),
			"Events retained in the in-memory history.",
			nil, nil,
		),
		listenersDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "listeners"),
			"Registered status change listeners.",
			nil, nil,
		),
	}
}

// Register adds the exporter's counters and fleet collector to reg.
func (p *PrometheusExporter) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{p.changes, p.events, p} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// HandleStatusChange increments the change counters. It satisfies
// device.Listener.
func (p *PrometheusExporter) HandleStatusChange(_ context.Context, event device.StatusChangeEvent) error {
	p.events.Inc()
	for _, c := range event.Changes {
		p.changes.WithLabelValues(string(c.Type), string(c.Severity)).Inc()
	}
	return nil
}

// Describe implements prometheus.Collector.
func (p *PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.devicesDesc
	ch <- p.statusDesc
	ch <- p.historyDesc
	ch <- p.listenersDesc
}

// Collect implements prometheus.Collector.
func (p *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	states := p.source.GetAll()
	s := Summarise(states)

	for condition, v := range map[string]int{
		"total":     s.Total,
		"online":    s.Online,
		"offline":   s.Total - s.Online,
		"alerts":    s.Alerts,
		"alarms":    s.Alarms,
		"unhealthy": s.Unhealthy,
	} {
		ch <- prometheus.MustNewConstMetric(p.devicesDesc, prometheus.GaugeValue, float64(v), condition)
	}

	byStatus := make(map[device.Status]int)
	for _, d := range states {
		byStatus[d.Status]++
	}
	for status, n := range byStatus {
		ch <- prometheus.MustNewConstMetric(p.statusDesc, prometheus.GaugeValue, float64(n), string(status))
	}

	ch <- prometheus.MustNewConstMetric(p.historyDesc, prometheus.GaugeValue, float64(p.source.HistoryLen()))
	ch <- prometheus.MustNewConstMetric(p.listenersDesc, prometheus.GaugeValue, float64(p.source.SubscriberCount()))
}
