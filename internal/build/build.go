// SPDX-License-Identifier:Apache-2.0

// Package build drives image builds through a Docker daemon. It
// renders the recipe's build file, assembles the context archive, and
// hands both to the daemon. Any step failure aborts the build with no
// partial output; there are no retries.
package build

import (
	"bytes"
	"io"
	"time"

	units "github.com/docker/go-units"
	docker "github.com/fsouza/go-dockerclient"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"go.redpack.dev/redpack/internal/buildctx"
	"go.redpack.dev/redpack/internal/dockerfile"
	"go.redpack.dev/redpack/internal/recipe"
)

// dockerClient is the slice of the Docker API the builder needs.
// *docker.Client satisfies it.
type dockerClient interface {
	BuildImage(opts docker.BuildImageOptions) error
	InspectImage(name string) (*docker.Image, error)
	PushImage(opts docker.PushImageOptions, auth docker.AuthConfiguration) error
}

// Options control one build.
type Options struct {
	// SourceDir holds the configuration file and entrypoint script
	// named by the recipe.
	SourceDir string
	// Registry and Tag name the resulting image.
	Registry string
	Tag      string
	// NoCache disables the daemon's layer cache.
	NoCache bool
	// Output receives the daemon's build log. Discarded when nil.
	Output io.Writer
}

// Builder builds and pushes images for recipes.
type Builder struct {
	client dockerClient
	logger log.Logger
}

// New returns a Builder talking to the daemon configured in the
// environment (DOCKER_HOST et al.).
func New(logger log.Logger) (*Builder, error) {
	client, err := docker.NewClientFromEnv()
	if err != nil {
		return nil, errors.Wrap(err, "connecting to the docker daemon")
	}
	return &Builder{client: client, logger: logger}, nil
}

// NewWithClient returns a Builder using the given client. Tests use
// this to substitute a fake daemon.
func NewWithClient(logger log.Logger, client dockerClient) *Builder {
	return &Builder{client: client, logger: logger}
}

// Build assembles and builds the image for r, returning the name the
// image was tagged with.
func (b *Builder) Build(r recipe.Recipe, opts Options) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	name := r.ImageName(opts.Registry, opts.Tag)
	l := log.With(b.logger, "role", r.Role, "image", name)

	buildFile := dockerfile.RenderRecipe(r)
	context, err := buildctx.Assemble(opts.SourceDir, r, buildFile)
	if err != nil {
		stats.Built(string(r.Role), err)
		return "", err
	}

	out := opts.Output
	if out == nil {
		out = io.Discard
	}

	level.Info(l).Log("event", "buildStarted", "base", r.BaseRef())
	start := time.Now()
	err = b.client.BuildImage(docker.BuildImageOptions{
		Name:                name,
		InputStream:         bytes.NewReader(context),
		OutputStream:        out,
		NoCache:             opts.NoCache,
		RmTmpContainer:      true,
		ForceRmTmpContainer: true,
	})
	stats.Built(string(r.Role), err)
	stats.Took(string(r.Role), time.Since(start).Seconds())
	if err != nil {
		level.Error(l).Log("event", "buildFailed", "error", err)
		return "", errors.Wrapf(err, "building %q", name)
	}

	img, err := b.client.InspectImage(name)
	if err != nil {
		return "", errors.Wrapf(err, "inspecting built image %q", name)
	}
	level.Info(l).Log("event", "buildFinished", "id", img.ID, "size", units.HumanSize(float64(img.Size)), "took", time.Since(start))
	return name, nil
}

// Push uploads a previously built image to its registry.
func (b *Builder) Push(r recipe.Recipe, opts Options) error {
	name := r.ImageName(opts.Registry, opts.Tag)
	repository, tag := docker.ParseRepositoryTag(name)

	out := opts.Output
	if out == nil {
		out = io.Discard
	}

	level.Info(b.logger).Log("event", "pushStarted", "image", name)
	err := b.client.PushImage(docker.PushImageOptions{
		Name:         repository,
		Tag:          tag,
		OutputStream: out,
	}, docker.AuthConfiguration{})
	stats.Pushed(string(r.Role), err)
	if err != nil {
		return errors.Wrapf(err, "pushing %q", name)
	}
	level.Info(b.logger).Log("event", "pushFinished", "image", name)
	return nil
}
