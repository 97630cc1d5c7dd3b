package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 拨号结果标签
const (
	DialSuccess = "success"
	DialFailure = "failure"
)

// Metrics 节点指标集合
type Metrics struct {
	Registry *prometheus.Registry

	GossipPublished *prometheus.CounterVec
	GossipDelivered *prometheus.CounterVec
	GossipDuplicate *prometheus.CounterVec
	GossipRejected  *prometheus.CounterVec

	Dials       *prometheus.CounterVec
	Connections *prometheus.GaugeVec

	BytesSent     *prometheus.CounterVec
	BytesReceived *prometheus.CounterVec

	RelayReservations prometheus.Gauge
}

// New 创建指标集合并注册到新的 Registry
func New(namespace string) *Metrics {
	return NewWithRegistry(namespace, prometheus.NewRegistry())
}

// NewWithRegistry 在给定 Registry 上创建指标集合
func NewWithRegistry(namespace string, reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Registry: reg,
		GossipPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gossip", Name: "published_total",
			Help: "Messages published by this node.",
		}, []string{"topic"}),
		GossipDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gossip", Name: "delivered_total",
			Help: "Messages delivered to local subscribers.",
		}, []string{"topic"}),
		GossipDuplicate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gossip", Name: "duplicate_total",
			Help: "Messages dropped because their identifier was already seen.",
		}, []string{"topic"}),
		GossipRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gossip", Name: "rejected_total",
			Help: "Messages rejected by validation.",
		}, []string{"reason"}),
		Dials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "swarm", Name: "dials_total",
			Help: "Dial attempts by result and transport.",
		}, []string{"result", "transport"}),
		Connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "swarm", Name: "connections",
			Help: "Open connections by direction.",
		}, []string{"direction"}),
		BytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bandwidth", Name: "sent_bytes_total",
			Help: "Bytes written to streams by protocol.",
		}, []string{"protocol"}),
		BytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bandwidth", Name: "received_bytes_total",
			Help: "Bytes read from streams by protocol.",
		}, []string{"protocol"}),
		RelayReservations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "relay", Name: "reservations",
			Help: "Relay reservations currently held.",
		}),
	}

	reg.MustRegister(
		m.GossipPublished, m.GossipDelivered, m.GossipDuplicate, m.GossipRejected,
		m.Dials, m.Connections,
		m.BytesSent, m.BytesReceived,
		m.RelayReservations,
	)
	return m
}

// RegisterRuntime 注册 Go 运行时与进程指标
func (m *Metrics) RegisterRuntime() error {
	if err := m.Registry.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	return m.Registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler 返回暴露本节点指标的 HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveDial 记录一次拨号
func (m *Metrics) ObserveDial(transport string, err error) {
	if m == nil {
		return
	}
	result := DialSuccess
	if err != nil {
		result = DialFailure
	}
	m.Dials.WithLabelValues(result, transport).Inc()
}
