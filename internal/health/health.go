// SPDX-License-Identifier:Apache-2.0

// Package health probes running sentinel and cluster nodes over the
// store's own protocol. It observes; it never votes in failovers or
// moves slots.
package health

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
)

const dialTimeout = 5 * time.Second

func newClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: dialTimeout,
		ReadTimeout: dialTimeout,
	})
}

// Sentinel probes one sentinel node.
type Sentinel struct {
	client *redis.Client
}

// NewSentinel connects to the sentinel control port at addr
// ("host:26379").
func NewSentinel(addr string) *Sentinel {
	return &Sentinel{client: newClient(addr)}
}

// Close releases the connection.
func (s *Sentinel) Close() error { return s.client.Close() }

// Ping reports whether the sentinel answers at all.
func (s *Sentinel) Ping() error {
	return s.client.Ping().Err()
}

// MasterAddr asks the sentinel where the primary it monitors under
// name currently lives.
func (s *Sentinel) MasterAddr(name string) (host, port string, err error) {
	cmd := redis.NewStringSliceCmd("SENTINEL", "get-master-addr-by-name", name)
	if err := s.client.Process(cmd); err != nil {
		return "", "", errors.Wrapf(err, "querying master %q", name)
	}
	addr, err := cmd.Result()
	if err != nil {
		return "", "", errors.Wrapf(err, "querying master %q", name)
	}
	if len(addr) < 2 {
		return "", "", errors.Errorf("sentinel returned short address %v for master %q", addr, name)
	}
	return addr[0], addr[1], nil
}

// SlaveCount returns the number of replicas the sentinel sees for the
// named primary.
func (s *Sentinel) SlaveCount(name string) (int, error) {
	cmd := redis.NewSliceCmd("SENTINEL", "slaves", name)
	if err := s.client.Process(cmd); err != nil {
		return 0, errors.Wrapf(err, "listing replicas of %q", name)
	}
	result, err := cmd.Result()
	if err != nil {
		return 0, errors.Wrapf(err, "listing replicas of %q", name)
	}
	count := 0
	for _, blob := range result {
		if _, ok := blob.([]interface{}); ok {
			count++
		}
	}
	return count, nil
}

// ClusterStatus is the health summary of one cluster node, from its
// own point of view.
type ClusterStatus struct {
	// StateOK is true when the node reports cluster_state:ok, meaning
	// every hash slot is served.
	StateOK bool
	// KnownNodes is how many nodes this one has met over the bus.
	KnownNodes int
	// SlotsAssigned is how many of the 16384 hash slots have an
	// owner.
	SlotsAssigned int
}

// Cluster probes one cluster data node.
type Cluster struct {
	client *redis.Client
}

// NewCluster connects to the data port at addr ("host:6379").
func NewCluster(addr string) *Cluster {
	return &Cluster{client: newClient(addr)}
}

// Close releases the connection.
func (c *Cluster) Close() error { return c.client.Close() }

// Ping reports whether the node answers at all.
func (c *Cluster) Ping() error {
	return c.client.Ping().Err()
}

// Status fetches and summarizes CLUSTER INFO.
func (c *Cluster) Status() (*ClusterStatus, error) {
	raw, err := c.client.ClusterInfo().Result()
	if err != nil {
		return nil, errors.Wrap(err, "fetching cluster info")
	}
	return parseClusterInfo(raw)
}

// parseClusterInfo reads the "key:value" lines of a CLUSTER INFO
// reply. Unknown keys are ignored so newer store versions don't break
// probing.
func parseClusterInfo(raw string) (*ClusterStatus, error) {
	st := &ClusterStatus{}
	seen := false
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch key {
		case "cluster_state":
			st.StateOK = value == "ok"
			seen = true
		case "cluster_known_nodes":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, errors.Wrapf(err, "bad cluster_known_nodes %q", value)
			}
			st.KnownNodes = n
		case "cluster_slots_assigned":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, errors.Wrapf(err, "bad cluster_slots_assigned %q", value)
			}
			st.SlotsAssigned = n
		}
	}
	if !seen {
		return nil, errors.New("reply carries no cluster_state, node is not in cluster mode")
	}
	return st, nil
}
