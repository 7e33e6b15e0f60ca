// SPDX-License-Identifier:Apache-2.0

package redisconf

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRenderSentinelDefaults(t *testing.T) {
	want := `port 26379
dir /redis
sentinel monitor mymaster redis-master 6379 2
sentinel down-after-milliseconds mymaster 5000
sentinel parallel-syncs mymaster 1
sentinel failover-timeout mymaster 60000
`
	got := string(DefaultSentinel(26379, "/redis", "mymaster", "redis-master", 6379))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sentinel.conf (-want +got)\n%s", diff)
	}
}

func TestRenderClusterDefaults(t *testing.T) {
	want := `port 6379
dir /redis
cluster-enabled yes
cluster-config-file nodes.conf
cluster-node-timeout 5000
appendonly yes
`
	got := string(DefaultCluster(6379, "/redis"))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cluster.conf (-want +got)\n%s", diff)
	}
}

func TestFromLines(t *testing.T) {
	got := FromLines([]string{
		"maxmemory 100mb",
		"",
		"# a comment",
		"  save 900 1  ",
	})
	want := []Directive{
		{Name: "maxmemory", Args: []string{"100mb"}},
		{Name: "save", Args: []string{"900", "1"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("directives (-want +got)\n%s", diff)
	}
}

func TestDirectiveString(t *testing.T) {
	if got, want := D("appendonly").String(), "appendonly"; got != want {
		t.Errorf("bare directive: got %q, want %q", got, want)
	}
	if got := D("sentinel", "monitor", "m", "1.2.3.4", "6379", "2").String(); !strings.HasPrefix(got, "sentinel monitor") {
		t.Errorf("unexpected rendering %q", got)
	}
}
