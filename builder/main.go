// SPDX-License-Identifier:Apache-2.0

// The builder binary turns the two image recipes into deployable
// images: it renders their build files, assembles default artifacts,
// drives builds and pushes through the Docker daemon, verifies the
// output, and emits deployment manifests.
package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	docker "github.com/fsouza/go-dockerclient"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/pflag"

	"go.redpack.dev/redpack/internal/build"
	"go.redpack.dev/redpack/internal/dockerfile"
	"go.redpack.dev/redpack/internal/entrypoint"
	"go.redpack.dev/redpack/internal/env"
	"go.redpack.dev/redpack/internal/inspect"
	"go.redpack.dev/redpack/internal/logging"
	"go.redpack.dev/redpack/internal/manifest"
	"go.redpack.dev/redpack/internal/recipe"
	"go.redpack.dev/redpack/internal/redisconf"
	"go.redpack.dev/redpack/internal/version"
)

var (
	roles      = pflag.StringSliceP("role", "r", []string{"sentinel", "cluster"}, "image roles to act upon")
	actions    = pflag.StringSliceP("action", "a", []string{"build"}, "actions to execute")
	registry   = pflag.String("registry", env.Registry(), "image registry to tag and push into")
	tag        = pflag.StringP("tag", "t", env.Tag(), "tag to use for built images")
	sourceDir  = pflag.StringP("source", "s", ".", "directory holding the configuration files and entrypoint scripts")
	outDir     = pflag.StringP("out", "o", "build", "directory for rendered build files and manifests")
	overrides  = pflag.String("config", "", "recipe overrides file")
	noCache    = pflag.Bool("no-cache", false, "build without the daemon's layer cache")
	masterName = pflag.String("master", "mymaster", "master name written into the default sentinel configuration")
	logLevel   = pflag.String("log-level", "info", fmt.Sprintf("log level, one of [%s]", strings.Join(logging.Levels, ", ")))

	validActions = map[string]func([]recipe.Recipe){
		"render":    render,
		"defaults":  defaults,
		"build":     buildImages,
		"push":      pushImages,
		"verify":    verifyImages,
		"manifests": manifests,
	}
)

var logger log.Logger

// imageNaming picks the registry and tag for built images. An
// explicitly set flag wins, then the overrides file, then the flag's
// environment default.
func imageNaming(o *recipe.Overrides, registry, tag string, registrySet, tagSet bool) (string, string) {
	if o == nil {
		return registry, tag
	}
	if !registrySet && o.Registry != "" {
		registry = o.Registry
	}
	if !tagSet && o.Tag != "" {
		tag = o.Tag
	}
	return registry, tag
}

func fatal(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}

func main() {
	pflag.Parse()

	var err error
	if logger, err = logging.Init(*logLevel); err != nil {
		fatal("%s", err)
	}

	var o *recipe.Overrides
	if *overrides != "" {
		if o, err = recipe.Load(*overrides); err != nil {
			fatal("loading overrides: %s", err)
		}
	}
	*registry, *tag = imageNaming(o, *registry, *tag,
		pflag.CommandLine.Changed("registry"), pflag.CommandLine.Changed("tag"))

	var recipes []recipe.Recipe
	for _, name := range *roles {
		if name == "all" {
			recipes = recipes[:0]
			for _, role := range recipe.Roles {
				r, _ := recipe.ForRole(role)
				recipes = append(recipes, o.Apply(r))
			}
			break
		}
		r, err := recipe.ForRole(recipe.Role(name))
		if err != nil {
			fatal("unknown role %q", name)
		}
		recipes = append(recipes, o.Apply(r))
	}

	for _, act := range *actions {
		if validActions[act] == nil {
			names := make([]string, 0, len(validActions))
			for name := range validActions {
				names = append(names, name)
			}
			sort.Strings(names)
			fatal("unknown action %q, must be one of [%s]", act, strings.Join(names, ", "))
		}
	}

	level.Debug(logger).Log("msg", "redpack builder "+version.String())
	for _, act := range *actions {
		validActions[act](recipes)
	}
}

// render writes each recipe's build file under the output directory.
func render(recipes []recipe.Recipe) {
	for _, r := range recipes {
		dir := filepath.Join(*outDir, string(r.Role))
		if err := os.MkdirAll(dir, 0750); err != nil {
			fatal("making %q: %s", dir, err)
		}
		path := filepath.Join(dir, "Dockerfile")
		if err := ioutil.WriteFile(path, dockerfile.RenderRecipe(r), 0640); err != nil {
			fatal("writing %q: %s", path, err)
		}
		level.Info(logger).Log("event", "rendered", "role", r.Role, "path", path)
	}
}

// defaults materializes the stock configuration file and entrypoint
// script for each recipe into the source directory. Files already
// present are left alone, so hand-edited artifacts survive.
func defaults(recipes []recipe.Recipe) {
	for _, r := range recipes {
		var conf []byte
		switch r.Role {
		case recipe.RoleSentinel:
			conf = redisconf.DefaultSentinel(r.Port, r.WorkDir, *masterName, "redis-cluster-0.redis-cluster", recipe.ClusterPort)
		case recipe.RoleCluster:
			conf = redisconf.DefaultCluster(r.Port, r.WorkDir)
		}
		script, err := entrypoint.Script(r)
		if err != nil {
			fatal("generating entrypoint for %q: %s", r.Role, err)
		}

		writeIfAbsent(filepath.Join(*sourceDir, r.ConfigFile), conf, 0644)
		writeIfAbsent(filepath.Join(*sourceDir, r.Entrypoint), script, 0755)
	}
}

func writeIfAbsent(path string, content []byte, mode os.FileMode) {
	if _, err := os.Stat(path); err == nil {
		level.Info(logger).Log("event", "kept", "path", path)
		return
	}
	if err := ioutil.WriteFile(path, content, mode); err != nil {
		fatal("writing %q: %s", path, err)
	}
	level.Info(logger).Log("event", "wrote", "path", path)
}

func buildImages(recipes []recipe.Recipe) {
	b, err := build.New(logger)
	if err != nil {
		fatal("%s", err)
	}
	for _, r := range recipes {
		_, err := b.Build(r, build.Options{
			SourceDir: *sourceDir,
			Registry:  *registry,
			Tag:       *tag,
			NoCache:   *noCache,
			Output:    os.Stdout,
		})
		if err != nil {
			fatal("build of %q failed: %s", r.Role, err)
		}
	}
}

func pushImages(recipes []recipe.Recipe) {
	b, err := build.New(logger)
	if err != nil {
		fatal("%s", err)
	}
	for _, r := range recipes {
		err := b.Push(r, build.Options{Registry: *registry, Tag: *tag, Output: os.Stdout})
		if err != nil {
			fatal("push of %q failed: %s", r.Role, err)
		}
	}
}

func verifyImages(recipes []recipe.Recipe) {
	client, err := docker.NewClientFromEnv()
	if err != nil {
		fatal("connecting to the docker daemon: %s", err)
	}
	for _, r := range recipes {
		name := r.ImageName(*registry, *tag)
		rep, err := inspect.Image(client, name, r)
		if err != nil {
			fatal("inspecting %q: %s", name, err)
		}
		if err := rep.Err(); err != nil {
			fatal("%s", err)
		}
		level.Info(logger).Log("event", "verified", "role", r.Role, "image", name)
	}
}

func manifests(recipes []recipe.Recipe) {
	var sentinelImage, clusterImage string
	for _, r := range recipes {
		switch r.Role {
		case recipe.RoleSentinel:
			sentinelImage = r.ImageName(*registry, *tag)
		case recipe.RoleCluster:
			clusterImage = r.ImageName(*registry, *tag)
		}
	}
	if sentinelImage == "" || clusterImage == "" {
		fatal("manifests need both the sentinel and cluster roles selected")
	}

	bs, err := manifest.Render(manifest.Objects(sentinelImage, clusterImage, manifest.Defaults()))
	if err != nil {
		fatal("rendering manifests: %s", err)
	}
	if err := os.MkdirAll(*outDir, 0750); err != nil {
		fatal("making %q: %s", *outDir, err)
	}
	path := filepath.Join(*outDir, "redis.yaml")
	if err := ioutil.WriteFile(path, bs, 0640); err != nil {
		fatal("writing %q: %s", path, err)
	}
	level.Info(logger).Log("event", "wrote", "path", path)
}
