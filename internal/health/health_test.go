// SPDX-License-Identifier:Apache-2.0

package health

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseClusterInfo(t *testing.T) {
	tests := []struct {
		desc    string
		raw     string
		want    *ClusterStatus
		wantErr bool
	}{
		{
			desc: "healthy cluster",
			raw: "cluster_enabled:1\r\n" +
				"cluster_state:ok\r\n" +
				"cluster_slots_assigned:16384\r\n" +
				"cluster_slots_ok:16384\r\n" +
				"cluster_known_nodes:6\r\n" +
				"cluster_size:3\r\n",
			want: &ClusterStatus{StateOK: true, KnownNodes: 6, SlotsAssigned: 16384},
		},
		{
			desc: "cluster still forming",
			raw: "cluster_state:fail\r\n" +
				"cluster_slots_assigned:0\r\n" +
				"cluster_known_nodes:1\r\n",
			want: &ClusterStatus{KnownNodes: 1},
		},
		{
			desc: "unknown keys ignored",
			raw: "cluster_state:ok\r\n" +
				"cluster_shiny_new_field:yes\r\n",
			want: &ClusterStatus{StateOK: true},
		},
		{
			desc:    "not a cluster node",
			raw:     "# Server\r\nredis_version:7.0.0\r\n",
			wantErr: true,
		},
		{
			desc:    "garbage counter",
			raw:     "cluster_state:ok\r\ncluster_known_nodes:many\r\n",
			wantErr: true,
		},
	}

	for _, test := range tests {
		got, err := parseClusterInfo(test.raw)
		if test.wantErr {
			if err == nil {
				t.Errorf("%q: expected error, got nil", test.desc)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %s", test.desc, err)
			continue
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("%q: status (-want +got)\n%s", test.desc, diff)
		}
	}
}
