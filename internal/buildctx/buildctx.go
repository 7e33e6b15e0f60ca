// SPDX-License-Identifier:Apache-2.0

// Package buildctx assembles the tar stream a docker build consumes.
// The archive always holds exactly three entries: the rendered build
// file, the configuration file, and the entrypoint script. Header
// metadata is normalized so identical inputs produce identical
// archives, keeping rebuilds idempotent.
package buildctx

import (
	"archive/tar"
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"go.redpack.dev/redpack/internal/recipe"
)

const (
	// DockerfileName is the build file's name inside the context.
	DockerfileName = "Dockerfile"

	configMode     = 0644
	entrypointMode = 0755
)

// Assemble reads the recipe's source artifacts from dir and returns
// the build context archive. A missing artifact fails here, before
// anything reaches the build daemon.
func Assemble(dir string, r recipe.Recipe, buildFile []byte) ([]byte, error) {
	config, err := readInput(dir, r.ConfigFile)
	if err != nil {
		return nil, err
	}
	script, err := readInput(dir, r.Entrypoint)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	entries := []struct {
		name string
		mode int64
		body []byte
	}{
		{DockerfileName, configMode, buildFile},
		{r.ConfigFile, configMode, config},
		// The script is executable in the context as well as chmod-ed
		// during the build, so neither side depends on the other.
		{r.Entrypoint, entrypointMode, script},
	}
	for _, e := range entries {
		hdr := &tar.Header{
			Name: e.name,
			Mode: e.mode,
			Size: int64(len(e.body)),
			// Fixed timestamp, anonymous ownership: the context must
			// not leak host state into the image layers.
			ModTime:  time.Unix(0, 0),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, errors.Wrapf(err, "writing context header for %q", e.name)
		}
		if _, err := tw.Write(e.body); err != nil {
			return nil, errors.Wrapf(err, "writing context entry %q", e.name)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, errors.Wrap(err, "finalizing context")
	}
	return buf.Bytes(), nil
}

func readInput(dir, name string) ([]byte, error) {
	path := filepath.Join(dir, name)
	bs, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Errorf("build input %q not found in %q", name, dir)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading build input %q", path)
	}
	return bs, nil
}
