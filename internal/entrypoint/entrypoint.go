// SPDX-License-Identifier:Apache-2.0

// Package entrypoint generates the default startup scripts baked into
// the images. Operators can replace them with their own scripts in the
// build source directory; the build uses whatever file carries the
// recipe's entrypoint name.
package entrypoint

import (
	"bytes"
	"fmt"
	"text/template"

	"go.redpack.dev/redpack/internal/recipe"
)

var sentinelScript = template.Must(template.New("sentinel").Parse(`#!/bin/sh
set -e

exec redis-server {{.ConfigPath}} --sentinel
`))

// The cluster node announces a routable address so that the slot map
// handed to clients does not point inside the container network.
var clusterScript = template.Must(template.New("cluster").Parse(`#!/bin/sh
set -e

ANNOUNCE_IP="${CLUSTER_ANNOUNCE_IP:-$(hostname -i)}"

exec redis-server {{.ConfigPath}} \
	--cluster-announce-ip "$ANNOUNCE_IP" \
	--cluster-announce-port {{.Port}} \
	--cluster-announce-bus-port {{.BusPort}}
`))

// Script returns the default startup script for the recipe's role.
func Script(r recipe.Recipe) ([]byte, error) {
	data := struct {
		ConfigPath string
		Port       int
		BusPort    int
	}{
		ConfigPath: r.ConfigPath(),
		Port:       r.Port,
		BusPort:    r.Port + 10000,
	}

	var tmpl *template.Template
	switch r.Role {
	case recipe.RoleSentinel:
		tmpl = sentinelScript
	case recipe.RoleCluster:
		tmpl = clusterScript
	default:
		return nil, fmt.Errorf("no default entrypoint for role %q", r.Role)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
