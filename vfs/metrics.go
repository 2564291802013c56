package vfs

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/wasi-vfs/abi"
	"github.com/wippyai/wasi-vfs/fdtable"
)

type metrics struct {
	ops         *prometheus.CounterVec
	descriptors prometheus.Gauge
}

func newMetrics(id string) *metrics {
	labels := prometheus.Labels{"fs": id}
	return &metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "wasifs",
			Name:        "operations_total",
			Help:        "Filesystem operations by name and resulting errno.",
			ConstLabels: labels,
		}, []string{"op", "errno"}),
		descriptors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "wasifs",
			Name:        "open_descriptors",
			Help:        "Descriptors currently open, excluding stdio.",
			ConstLabels: labels,
		}),
	}
}

func (m *metrics) register(r prometheus.Registerer) error {
	if err := r.Register(m.ops); err != nil {
		return err
	}
	return r.Register(m.descriptors)
}

func (m *metrics) unregister(r prometheus.Registerer) {
	r.Unregister(m.ops)
	r.Unregister(m.descriptors)
}

func (m *metrics) observe(op string, err error) {
	m.ops.WithLabelValues(op, abi.ToErrno(err).Name()).Inc()
}

// OnDescriptorEvent tracks the open descriptor count.
func (m *metrics) OnDescriptorEvent(e fdtable.Event) {
	switch e.Type {
	case fdtable.EventAllocated:
		m.descriptors.Inc()
	case fdtable.EventRemoved:
		m.descriptors.Dec()
	}
}
