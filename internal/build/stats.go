// SPDX-License-Identifier:Apache-2.0

package build

import "github.com/prometheus/client_golang/prometheus"

var stats = metrics{
	builds: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "redpack",
		Subsystem: "build",
		Name:      "images_built",
		Help:      "Number of image builds completed, by role and result",
	}, []string{
		"role",
		"result",
	}),

	duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "redpack",
		Subsystem: "build",
		Name:      "duration_seconds",
		Help:      "Wall time of image builds, by role",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{
		"role",
	}),

	pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "redpack",
		Subsystem: "build",
		Name:      "images_pushed",
		Help:      "Number of image pushes completed, by role and result",
	}, []string{
		"role",
		"result",
	}),
}

type metrics struct {
	builds   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	pushes   *prometheus.CounterVec
}

func init() {
	prometheus.MustRegister(stats.builds)
	prometheus.MustRegister(stats.duration)
	prometheus.MustRegister(stats.pushes)
}

func (m *metrics) Built(role string, err error) {
	m.builds.WithLabelValues(role, result(err)).Add(1)
}

func (m *metrics) Took(role string, seconds float64) {
	m.duration.WithLabelValues(role).Observe(seconds)
}

func (m *metrics) Pushed(role string, err error) {
	m.pushes.WithLabelValues(role, result(err)).Add(1)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
