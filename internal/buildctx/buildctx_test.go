// SPDX-License-Identifier:Apache-2.0

package buildctx

import (
	"archive/tar"
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"go.redpack.dev/redpack/internal/dockerfile"
	"go.redpack.dev/redpack/internal/recipe"
)

func writeInputs(t *testing.T, r recipe.Recipe) string {
	t.Helper()
	dir := t.TempDir()
	if err := ioutil.WriteFile(filepath.Join(dir, r.ConfigFile), []byte("port 26379\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// Deliberately not executable at the source: the build grants the
	// permission itself.
	if err := ioutil.WriteFile(filepath.Join(dir, r.Entrypoint), []byte("#!/bin/sh\n"), 0600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func entries(t *testing.T, archive []byte) map[string]*tar.Header {
	t.Helper()
	got := map[string]*tar.Header{}
	tr := tar.NewReader(bytes.NewReader(archive))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading archive: %s", err)
		}
		got[hdr.Name] = hdr
		if _, err := io.Copy(io.Discard, tr); err != nil {
			t.Fatalf("reading archive body: %s", err)
		}
	}
	return got
}

func TestAssemble(t *testing.T) {
	r := recipe.Sentinel()
	dir := writeInputs(t, r)

	archive, err := Assemble(dir, r, dockerfile.RenderRecipe(r))
	if err != nil {
		t.Fatalf("assembling context: %s", err)
	}

	got := entries(t, archive)
	for _, name := range []string{DockerfileName, "sentinel.conf", "sentinel-entrypoint.sh"} {
		if got[name] == nil {
			t.Fatalf("archive is missing %q", name)
		}
	}
	if len(got) != 3 {
		t.Errorf("archive has %d entries, want 3", len(got))
	}
	if mode := got["sentinel-entrypoint.sh"].Mode; mode&0111 == 0 {
		t.Errorf("entrypoint script mode %o is not executable", mode)
	}
	if mode := got["sentinel.conf"].Mode; mode != 0644 {
		t.Errorf("config file mode %o, want 0644", mode)
	}
}

func TestAssembleMissingInput(t *testing.T) {
	r := recipe.Cluster()
	dir := writeInputs(t, r)

	for _, name := range []string{r.ConfigFile, r.Entrypoint} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			t.Fatal(err)
		}
		if _, err := Assemble(dir, r, dockerfile.RenderRecipe(r)); err == nil {
			t.Errorf("missing %q: expected error, got nil", name)
		}
		if err := ioutil.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAssembleIdempotent(t *testing.T) {
	r := recipe.Cluster()
	dir := writeInputs(t, r)

	a, err := Assemble(dir, r, dockerfile.RenderRecipe(r))
	if err != nil {
		t.Fatal(err)
	}
	// Touch the inputs without changing content; the archive must not
	// pick up host mtimes.
	for _, name := range []string{r.ConfigFile, r.Entrypoint} {
		bs, err := ioutil.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if err := ioutil.WriteFile(filepath.Join(dir, name), bs, 0644); err != nil {
			t.Fatal(err)
		}
	}
	b, err := Assemble(dir, r, dockerfile.RenderRecipe(r))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("unchanged inputs produced different context archives")
	}
}
