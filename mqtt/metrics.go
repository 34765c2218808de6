package mqtt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricFramesIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pinhub",
		Subsystem: "mqtt",
		Name:      "frames_in_total",
		Help:      "Frames received from devices, by outcome.",
	}, []string{"result"})

	metricFramesOut = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pinhub",
		Subsystem: "mqtt",
		Name:      "frames_out_total",
		Help:      "Frames sent to devices, by outcome.",
	}, []string{"result"})

	metricIdleDisconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pinhub",
		Subsystem: "mqtt",
		Name:      "idle_disconnects_total",
		Help:      "Device links closed because no frame arrived in time.",
	})

	metricLinks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pinhub",
		Subsystem: "mqtt",
		Name:      "links",
		Help:      "Open device links.",
	})
)
