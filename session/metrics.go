package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricDevices = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pinhub",
		Name:      "device_connections",
		Help:      "Number of connected hardware devices.",
	})
	metricApps = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pinhub",
		Name:      "app_connections",
		Help:      "Number of connected app clients.",
	})
	metricFanoutSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pinhub",
		Name:      "fanout_sent_total",
		Help:      "Frames delivered to app connections.",
	})
	metricFanoutDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pinhub",
		Name:      "fanout_dropped_total",
		Help:      "Frames dropped because an app connection was closed or full.",
	})
)
