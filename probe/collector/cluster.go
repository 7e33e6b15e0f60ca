// SPDX-License-Identifier:Apache-2.0

package collector

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"go.redpack.dev/redpack/internal/health"
)

var (
	clusterUpDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, Subsystem, "cluster_up"),
		"Whether the cluster node answers on its data port",
		nil,
		nil,
	)

	clusterOKDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, Subsystem, "cluster_state_ok"),
		"Whether the node reports every hash slot as served",
		nil,
		nil,
	)

	knownNodesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, Subsystem, "cluster_known_nodes"),
		"Number of nodes this one has met over the cluster bus",
		nil,
		nil,
	)

	slotsAssignedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, Subsystem, "cluster_slots_assigned"),
		"Number of the 16384 hash slots that have an owner",
		nil,
		nil,
	)
)

// clusterProber is the slice of the health API the collector reads.
type clusterProber interface {
	Ping() error
	Status() (*health.ClusterStatus, error)
	Close() error
}

type cluster struct {
	Log  log.Logger
	addr string
	dial func(addr string) clusterProber
}

// NewCluster returns a collector that probes the cluster node at addr
// on every scrape.
func NewCluster(l log.Logger, addr string) prometheus.Collector {
	log := log.With(l, "collector", "cluster", "target", addr)
	return &cluster{
		Log:  log,
		addr: addr,
		dial: func(addr string) clusterProber {
			return health.NewCluster(addr)
		},
	}
}

func (c *cluster) Describe(ch chan<- *prometheus.Desc) {
	ch <- clusterUpDesc
	ch <- clusterOKDesc
	ch <- knownNodesDesc
	ch <- slotsAssignedDesc
}

func (c *cluster) Collect(ch chan<- prometheus.Metric) {
	p := c.dial(c.addr)
	defer p.Close()

	if err := p.Ping(); err != nil {
		level.Error(c.Log).Log("error", err, "msg", "cluster node did not answer ping")
		ch <- prometheus.MustNewConstMetric(clusterUpDesc, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(clusterUpDesc, prometheus.GaugeValue, 1)

	st, err := p.Status()
	if err != nil {
		level.Error(c.Log).Log("error", err, "msg", "failed to fetch cluster status")
		return
	}

	ok := 0.0
	if st.StateOK {
		ok = 1
	}
	ch <- prometheus.MustNewConstMetric(clusterOKDesc, prometheus.GaugeValue, ok)
	ch <- prometheus.MustNewConstMetric(knownNodesDesc, prometheus.GaugeValue, float64(st.KnownNodes))
	ch <- prometheus.MustNewConstMetric(slotsAssignedDesc, prometheus.GaugeValue, float64(st.SlotsAssigned))
}
