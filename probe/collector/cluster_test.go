// SPDX-License-Identifier:Apache-2.0

package collector

import (
	"strings"
	"testing"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"go.redpack.dev/redpack/internal/health"
)

type fakeCluster struct {
	pingErr   error
	status    *health.ClusterStatus
	statusErr error
}

func (f *fakeCluster) Ping() error { return f.pingErr }

func (f *fakeCluster) Status() (*health.ClusterStatus, error) {
	return f.status, f.statusErr
}

func (f *fakeCluster) Close() error { return nil }

func clusterWith(f *fakeCluster) *cluster {
	return &cluster{
		Log:  log.NewNopLogger(),
		addr: "node:6379",
		dial: func(string) clusterProber { return f },
	}
}

func TestClusterCollectHealthy(t *testing.T) {
	f := &fakeCluster{
		status: &health.ClusterStatus{StateOK: true, KnownNodes: 6, SlotsAssigned: 16384},
	}
	want := `
	# HELP redpack_probe_cluster_up Whether the cluster node answers on its data port
	# TYPE redpack_probe_cluster_up gauge
	redpack_probe_cluster_up 1
	# HELP redpack_probe_cluster_state_ok Whether the node reports every hash slot as served
	# TYPE redpack_probe_cluster_state_ok gauge
	redpack_probe_cluster_state_ok 1
	# HELP redpack_probe_cluster_known_nodes Number of nodes this one has met over the cluster bus
	# TYPE redpack_probe_cluster_known_nodes gauge
	redpack_probe_cluster_known_nodes 6
	# HELP redpack_probe_cluster_slots_assigned Number of the 16384 hash slots that have an owner
	# TYPE redpack_probe_cluster_slots_assigned gauge
	redpack_probe_cluster_slots_assigned 16384
	`
	if err := testutil.CollectAndCompare(clusterWith(f), strings.NewReader(want)); err != nil {
		t.Error(err)
	}
}

func TestClusterCollectDown(t *testing.T) {
	f := &fakeCluster{pingErr: errors.New("connection refused")}
	want := `
	# HELP redpack_probe_cluster_up Whether the cluster node answers on its data port
	# TYPE redpack_probe_cluster_up gauge
	redpack_probe_cluster_up 0
	`
	if err := testutil.CollectAndCompare(clusterWith(f), strings.NewReader(want)); err != nil {
		t.Error(err)
	}
}

func TestClusterCollectStatusError(t *testing.T) {
	f := &fakeCluster{statusErr: errors.New("not in cluster mode")}
	want := `
	# HELP redpack_probe_cluster_up Whether the cluster node answers on its data port
	# TYPE redpack_probe_cluster_up gauge
	redpack_probe_cluster_up 1
	`
	if err := testutil.CollectAndCompare(clusterWith(f), strings.NewReader(want)); err != nil {
		t.Error(err)
	}
}
