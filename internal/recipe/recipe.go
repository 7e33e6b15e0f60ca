// SPDX-License-Identifier:Apache-2.0

// Package recipe models the build recipe for one deployable Redis
// image. Two canonical recipes exist: a sentinel monitoring node and a
// cluster data node. Everything else in redpack consumes a Recipe.
package recipe

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Role names a deployment topology for the packaged Redis binary.
type Role string

const (
	// RoleSentinel is a monitoring node that observes primary/replica
	// health and votes in failovers. It speaks the sentinel control
	// protocol on port 26379.
	RoleSentinel Role = "sentinel"
	// RoleCluster is a sharded data node that owns a hash slot range.
	// It serves the data protocol on port 6379.
	RoleCluster Role = "cluster"
)

// Roles is the list of roles redpack can package.
var Roles = []Role{RoleSentinel, RoleCluster}

const (
	// SentinelPort is the sentinel control port.
	SentinelPort = 26379
	// ClusterPort is the cluster node data port. The cluster bus uses
	// ClusterPort + 10000 by Redis convention.
	ClusterPort = 6379
	// ClusterBusPort is the inter-node gossip port.
	ClusterBusPort = ClusterPort + 10000

	defaultBaseImage = "redis:alpine"
	defaultWorkDir   = "/redis"
	defaultOwner     = "redis:redis"
)

// Recipe describes how to assemble one image: which base to start
// from, which artifacts to place in the working directory, who owns
// them, which port the running process listens on, and which script
// starts it. All fields are fixed at build time; the resulting image
// is immutable.
type Recipe struct {
	// Role of the node the image runs.
	Role Role
	// BaseImage is the upstream Redis distribution image reference,
	// as a name:tag pair.
	BaseImage string
	// BaseDigest optionally pins the base image to a content digest
	// ("sha256:..."), making rebuilds reproducible across registry
	// tag drift.
	BaseDigest string
	// WorkDir is the directory inside the image that holds the
	// configuration file and the entrypoint script.
	WorkDir string
	// ConfigFile is the name of the Redis configuration artifact.
	ConfigFile string
	// Entrypoint is the name of the startup shell script. It is
	// granted executable permission during the build for both roles.
	Entrypoint string
	// Port is the network port the process listens on, declared as
	// exposed on the image. Advisory metadata only.
	Port int
	// Owner is the user:group pair that owns the configuration file
	// inside the image. The account must be able to read and rewrite
	// the file while the store runs.
	Owner string
}

// Sentinel returns the canonical sentinel image recipe.
func Sentinel() Recipe {
	return Recipe{
		Role:       RoleSentinel,
		BaseImage:  defaultBaseImage,
		WorkDir:    defaultWorkDir,
		ConfigFile: "sentinel.conf",
		Entrypoint: "sentinel-entrypoint.sh",
		Port:       SentinelPort,
		Owner:      defaultOwner,
	}
}

// Cluster returns the canonical cluster node image recipe.
func Cluster() Recipe {
	return Recipe{
		Role:       RoleCluster,
		BaseImage:  defaultBaseImage,
		WorkDir:    defaultWorkDir,
		ConfigFile: "cluster.conf",
		Entrypoint: "cluster-entrypoint.sh",
		Port:       ClusterPort,
		Owner:      defaultOwner,
	}
}

// ForRole returns the canonical recipe for the given role.
func ForRole(role Role) (Recipe, error) {
	switch role {
	case RoleSentinel:
		return Sentinel(), nil
	case RoleCluster:
		return Cluster(), nil
	}
	return Recipe{}, fmt.Errorf("unknown role %q", role)
}

// BaseRef returns the base image reference to pull: the digest-pinned
// form when a digest is set, the plain name:tag otherwise.
func (r Recipe) BaseRef() string {
	if r.BaseDigest == "" {
		return r.BaseImage
	}
	// A colon followed by a slash is a registry port, not a tag.
	name := r.BaseImage
	if i := strings.LastIndex(name, ":"); i >= 0 && !strings.Contains(name[i+1:], "/") {
		name = name[:i]
	}
	return name + "@" + r.BaseDigest
}

// ImageName returns the full name the built image is tagged with.
func (r Recipe) ImageName(registry, tag string) string {
	return fmt.Sprintf("%s/redis-%s:%s", registry, r.Role, tag)
}

// User returns the user part of Owner.
func (r Recipe) User() string {
	user, _, _ := strings.Cut(r.Owner, ":")
	return user
}

// Group returns the group part of Owner.
func (r Recipe) Group() string {
	_, group, ok := strings.Cut(r.Owner, ":")
	if !ok {
		return r.User()
	}
	return group
}

// ConfigPath returns the absolute path of the configuration file
// inside the image.
func (r Recipe) ConfigPath() string {
	return r.WorkDir + "/" + r.ConfigFile
}

// EntrypointPath returns the absolute path of the entrypoint script
// inside the image.
func (r Recipe) EntrypointPath() string {
	return r.WorkDir + "/" + r.Entrypoint
}

// Validate checks that the recipe is complete enough to build. It does
// not look at the contents of the named artifacts; a malformed
// configuration file is only detected when the store parses it at
// container start.
func (r Recipe) Validate() error {
	switch r.Role {
	case RoleSentinel, RoleCluster:
	default:
		return fmt.Errorf("unknown role %q", r.Role)
	}
	if r.BaseImage == "" {
		return errors.New("no base image")
	}
	if r.BaseDigest != "" && !strings.HasPrefix(r.BaseDigest, "sha256:") {
		return fmt.Errorf("base digest %q is not a sha256 digest", r.BaseDigest)
	}
	if !strings.HasPrefix(r.WorkDir, "/") {
		return fmt.Errorf("working directory %q is not absolute", r.WorkDir)
	}
	if r.ConfigFile == "" || strings.Contains(r.ConfigFile, "/") {
		return fmt.Errorf("invalid configuration file name %q", r.ConfigFile)
	}
	if r.Entrypoint == "" || strings.Contains(r.Entrypoint, "/") {
		return fmt.Errorf("invalid entrypoint script name %q", r.Entrypoint)
	}
	if r.Port <= 0 || r.Port > 65535 {
		return fmt.Errorf("invalid port %d", r.Port)
	}
	if r.User() == "" || r.Group() == "" {
		return fmt.Errorf("invalid owner %q, must be user:group", r.Owner)
	}
	return nil
}
