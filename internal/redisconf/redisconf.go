// SPDX-License-Identifier:Apache-2.0

// Package redisconf renders the configuration artifacts baked into the
// images. It only writes directives out; it never interprets Redis's
// configuration grammar. A malformed directive surfaces when the store
// parses the file at container start, not here.
package redisconf

import (
	"strconv"
	"strings"
)

// Directive is one "name arg arg..." line of a configuration file.
type Directive struct {
	Name string
	Args []string
}

// D is shorthand for building a Directive.
func D(name string, args ...string) Directive {
	return Directive{Name: name, Args: args}
}

func (d Directive) String() string {
	if len(d.Args) == 0 {
		return d.Name
	}
	return d.Name + " " + strings.Join(d.Args, " ")
}

// Render serializes directives into file form, one per line.
func Render(ds []Directive) []byte {
	var b strings.Builder
	for _, d := range ds {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// FromLines splits raw "name value" lines into directives, dropping
// blank lines and comments. Shape only: the names and values are
// passed through untouched.
func FromLines(lines []string) []Directive {
	ds := make([]Directive, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		ds = append(ds, Directive{Name: fields[0], Args: fields[1:]})
	}
	return ds
}

// SentinelOptions shape the default sentinel configuration.
type SentinelOptions struct {
	// Port the sentinel listens on.
	Port int
	// MasterName is the logical name of the monitored primary.
	MasterName string
	// MasterAddr and MasterPort locate the initial primary.
	MasterAddr string
	MasterPort int
	// Quorum is the number of sentinels that must agree the primary
	// is down before a failover starts.
	Quorum int
	// Dir is the sentinel's working directory. The store rewrites its
	// own configuration file there during failovers.
	Dir string
}

// SentinelDefaults returns the directives of the stock sentinel.conf
// shipped in the sentinel image.
func SentinelDefaults(o SentinelOptions) []Directive {
	monitor := []string{o.MasterName, o.MasterAddr, itoa(o.MasterPort), itoa(o.Quorum)}
	return []Directive{
		D("port", itoa(o.Port)),
		D("dir", o.Dir),
		D("sentinel", append([]string{"monitor"}, monitor...)...),
		D("sentinel", "down-after-milliseconds", o.MasterName, "5000"),
		D("sentinel", "parallel-syncs", o.MasterName, "1"),
		D("sentinel", "failover-timeout", o.MasterName, "60000"),
	}
}

// ClusterOptions shape the default cluster node configuration.
type ClusterOptions struct {
	// Port the node serves data on. The cluster bus uses Port+10000.
	Port int
	// NodeTimeoutMillis is how long a node can be unreachable before
	// it is considered failing.
	NodeTimeoutMillis int
	// Dir is the node's working directory, holding nodes.conf and the
	// append-only file.
	Dir string
	// AppendOnly enables AOF persistence.
	AppendOnly bool
}

// ClusterDefaults returns the directives of the stock cluster.conf
// shipped in the cluster node image.
func ClusterDefaults(o ClusterOptions) []Directive {
	appendonly := "no"
	if o.AppendOnly {
		appendonly = "yes"
	}
	return []Directive{
		D("port", itoa(o.Port)),
		D("dir", o.Dir),
		D("cluster-enabled", "yes"),
		D("cluster-config-file", "nodes.conf"),
		D("cluster-node-timeout", itoa(o.NodeTimeoutMillis)),
		D("appendonly", appendonly),
	}
}

// DefaultSentinel renders the sentinel.conf matching the canonical
// sentinel recipe, monitoring master name at addr.
func DefaultSentinel(port int, dir, name, addr string, masterPort int) []byte {
	return Render(SentinelDefaults(SentinelOptions{
		Port:       port,
		Dir:        dir,
		MasterName: name,
		MasterAddr: addr,
		MasterPort: masterPort,
		Quorum:     2,
	}))
}

// DefaultCluster renders the cluster.conf matching the canonical
// cluster recipe.
func DefaultCluster(port int, dir string) []byte {
	return Render(ClusterDefaults(ClusterOptions{
		Port:              port,
		Dir:               dir,
		NodeTimeoutMillis: 5000,
		AppendOnly:        true,
	}))
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
