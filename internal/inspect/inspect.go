// SPDX-License-Identifier:Apache-2.0

// Package inspect verifies that a built image honors its recipe: the
// declared port is exposed, the entrypoint is the recipe's script, and
// the working directory holds the configuration file with the right
// ownership and the script with executable permission.
package inspect

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	docker "github.com/fsouza/go-dockerclient"
	"github.com/pkg/errors"

	"go.redpack.dev/redpack/internal/recipe"
)

// redisUID is the uid/gid the upstream alpine image assigns to the
// redis account. Accepted when the tar stream carries numeric
// ownership instead of names.
const redisUID = 999

// dockerClient is the slice of the Docker API inspection needs.
// *docker.Client satisfies it.
type dockerClient interface {
	InspectImage(name string) (*docker.Image, error)
	CreateContainer(opts docker.CreateContainerOptions) (*docker.Container, error)
	RemoveContainer(opts docker.RemoveContainerOptions) error
	DownloadFromContainer(id string, opts docker.DownloadFromContainerOptions) error
}

// Report lists the recipe properties an image failed to satisfy.
// Empty means the image checks out.
type Report struct {
	Image    string
	Problems []string
}

// Err returns nil for a clean report, an error naming every problem
// otherwise.
func (rep *Report) Err() error {
	if len(rep.Problems) == 0 {
		return nil
	}
	return fmt.Errorf("image %q: %s", rep.Image, strings.Join(rep.Problems, "; "))
}

func (rep *Report) problemf(format string, args ...interface{}) {
	rep.Problems = append(rep.Problems, fmt.Sprintf(format, args...))
}

// Image checks the image named name against r.
func Image(client dockerClient, name string, r recipe.Recipe) (*Report, error) {
	rep := &Report{Image: name}

	img, err := client.InspectImage(name)
	if err != nil {
		return nil, errors.Wrapf(err, "inspecting %q", name)
	}
	checkConfig(rep, img.Config, r)

	tree, err := workDirArchive(client, name, r.WorkDir)
	if err != nil {
		return nil, err
	}
	if err := checkTree(rep, tar.NewReader(bytes.NewReader(tree)), r); err != nil {
		return nil, err
	}
	return rep, nil
}

func checkConfig(rep *Report, cfg *docker.Config, r recipe.Recipe) {
	if cfg == nil {
		rep.problemf("image has no config")
		return
	}

	port := docker.Port(fmt.Sprintf("%d/tcp", r.Port))
	if _, ok := cfg.ExposedPorts[port]; !ok {
		rep.problemf("port %d/tcp is not declared as exposed", r.Port)
	}

	want := []string{r.EntrypointPath()}
	if len(cfg.Entrypoint) != 1 || cfg.Entrypoint[0] != want[0] {
		rep.problemf("entrypoint is %v, want %v", cfg.Entrypoint, want)
	}
}

// workDirArchive exports the recipe's working directory from a
// throwaway container. The container is created but never started;
// its filesystem is the image's.
func workDirArchive(client dockerClient, name, workDir string) ([]byte, error) {
	c, err := client.CreateContainer(docker.CreateContainerOptions{
		Config: &docker.Config{Image: name},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "creating scratch container for %q", name)
	}
	defer client.RemoveContainer(docker.RemoveContainerOptions{ID: c.ID, Force: true})

	var buf bytes.Buffer
	err = client.DownloadFromContainer(c.ID, docker.DownloadFromContainerOptions{
		Path:         workDir,
		OutputStream: &buf,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "exporting %q from %q", workDir, name)
	}
	return buf.Bytes(), nil
}

// checkTree walks the exported working directory and records the
// recipe violations it finds.
func checkTree(rep *Report, tr *tar.Reader, r recipe.Recipe) error {
	var sawConfig, sawEntrypoint bool

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "reading exported working directory")
		}

		switch path.Base(hdr.Name) {
		case r.ConfigFile:
			sawConfig = true
			if !ownedByService(hdr, r) {
				rep.problemf("%s is owned by %s, want %s", r.ConfigPath(), ownerString(hdr), r.Owner)
			}
		case r.Entrypoint:
			sawEntrypoint = true
			if hdr.Mode&0111 == 0 {
				rep.problemf("%s is not executable (mode %04o)", r.EntrypointPath(), hdr.Mode)
			}
		}
	}

	if !sawConfig {
		rep.problemf("%s is missing from the image", r.ConfigPath())
	}
	if !sawEntrypoint {
		rep.problemf("%s is missing from the image", r.EntrypointPath())
	}
	return nil
}

func ownedByService(hdr *tar.Header, r recipe.Recipe) bool {
	if hdr.Uname != "" || hdr.Gname != "" {
		return hdr.Uname == r.User() && hdr.Gname == r.Group()
	}
	return hdr.Uid == redisUID && hdr.Gid == redisUID
}

func ownerString(hdr *tar.Header) string {
	if hdr.Uname != "" || hdr.Gname != "" {
		return hdr.Uname + ":" + hdr.Gname
	}
	return fmt.Sprintf("%d:%d", hdr.Uid, hdr.Gid)
}
