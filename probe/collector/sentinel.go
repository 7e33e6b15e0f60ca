// SPDX-License-Identifier:Apache-2.0

package collector

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"go.redpack.dev/redpack/internal/health"
)

// Namespace and Subsystem anchor every metric the probe exports.
const (
	Namespace = "redpack"
	Subsystem = "probe"
)

var (
	sentinelUpDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, Subsystem, "sentinel_up"),
		"Whether the sentinel answers on its control port",
		nil,
		nil,
	)

	masterKnownDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, Subsystem, "sentinel_master_known"),
		"Whether the sentinel can name an address for the monitored master",
		[]string{"master"},
		nil,
	)

	slavesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, Subsystem, "sentinel_slaves"),
		"Number of replicas the sentinel sees for the monitored master",
		[]string{"master"},
		nil,
	)
)

// sentinelProber is the slice of the health API the collector reads.
type sentinelProber interface {
	Ping() error
	MasterAddr(name string) (string, string, error)
	SlaveCount(name string) (int, error)
	Close() error
}

type sentinel struct {
	Log    log.Logger
	addr   string
	master string
	dial   func(addr string) sentinelProber
}

// NewSentinel returns a collector that probes the sentinel at addr for
// the named master on every scrape.
func NewSentinel(l log.Logger, addr, master string) prometheus.Collector {
	log := log.With(l, "collector", "sentinel", "target", addr)
	return &sentinel{
		Log:    log,
		addr:   addr,
		master: master,
		dial: func(addr string) sentinelProber {
			return health.NewSentinel(addr)
		},
	}
}

func (c *sentinel) Describe(ch chan<- *prometheus.Desc) {
	ch <- sentinelUpDesc
	ch <- masterKnownDesc
	ch <- slavesDesc
}

func (c *sentinel) Collect(ch chan<- prometheus.Metric) {
	p := c.dial(c.addr)
	defer p.Close()

	if err := p.Ping(); err != nil {
		level.Error(c.Log).Log("error", err, "msg", "sentinel did not answer ping")
		ch <- prometheus.MustNewConstMetric(sentinelUpDesc, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(sentinelUpDesc, prometheus.GaugeValue, 1)

	known := 1
	if _, _, err := p.MasterAddr(c.master); err != nil {
		level.Error(c.Log).Log("error", err, "msg", "sentinel has no address for master", "master", c.master)
		known = 0
	}
	ch <- prometheus.MustNewConstMetric(masterKnownDesc, prometheus.GaugeValue, float64(known), c.master)

	slaves, err := p.SlaveCount(c.master)
	if err != nil {
		level.Error(c.Log).Log("error", err, "msg", "failed to count replicas", "master", c.master)
		return
	}
	ch <- prometheus.MustNewConstMetric(slavesDesc, prometheus.GaugeValue, float64(slaves), c.master)
}
