// SPDX-License-Identifier:Apache-2.0

package inspect

import (
	"archive/tar"
	"bytes"
	"strings"
	"testing"

	docker "github.com/fsouza/go-dockerclient"

	"go.redpack.dev/redpack/internal/recipe"
)

type treeEntry struct {
	name         string
	mode         int64
	uname, gname string
	uid, gid     int
}

func makeTree(t *testing.T, entries []treeEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		typeflag := byte(tar.TypeReg)
		if strings.HasSuffix(e.name, "/") {
			typeflag = tar.TypeDir
		}
		err := tw.WriteHeader(&tar.Header{
			Name:     e.name,
			Mode:     e.mode,
			Uname:    e.uname,
			Gname:    e.gname,
			Uid:      e.uid,
			Gid:      e.gid,
			Typeflag: typeflag,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// fakeDocker serves a canned image config and working directory
// export.
type fakeDocker struct {
	config  *docker.Config
	tree    []byte
	removed bool
}

func (f *fakeDocker) InspectImage(name string) (*docker.Image, error) {
	return &docker.Image{ID: "sha256:fake", Config: f.config}, nil
}

func (f *fakeDocker) CreateContainer(opts docker.CreateContainerOptions) (*docker.Container, error) {
	return &docker.Container{ID: "scratch"}, nil
}

func (f *fakeDocker) RemoveContainer(opts docker.RemoveContainerOptions) error {
	f.removed = true
	return nil
}

func (f *fakeDocker) DownloadFromContainer(id string, opts docker.DownloadFromContainerOptions) error {
	_, err := opts.OutputStream.Write(f.tree)
	return err
}

func goodSentinelConfig() *docker.Config {
	return &docker.Config{
		ExposedPorts: map[docker.Port]struct{}{"26379/tcp": {}},
		Entrypoint:   []string{"/redis/sentinel-entrypoint.sh"},
		WorkingDir:   "/redis",
	}
}

func goodSentinelTree(t *testing.T) []byte {
	return makeTree(t, []treeEntry{
		{name: "redis/", mode: 0755, uname: "redis", gname: "redis"},
		{name: "redis/sentinel.conf", mode: 0644, uname: "redis", gname: "redis"},
		{name: "redis/sentinel-entrypoint.sh", mode: 0755, uname: "root", gname: "root"},
	})
}

func TestImageClean(t *testing.T) {
	fake := &fakeDocker{config: goodSentinelConfig(), tree: goodSentinelTree(t)}

	rep, err := Image(fake, "redpack/redis-sentinel:dev", recipe.Sentinel())
	if err != nil {
		t.Fatalf("inspect: %s", err)
	}
	if err := rep.Err(); err != nil {
		t.Errorf("clean image reported problems: %s", err)
	}
	if !fake.removed {
		t.Error("scratch container was not removed")
	}
}

func TestImageNumericOwnership(t *testing.T) {
	fake := &fakeDocker{
		config: goodSentinelConfig(),
		tree: makeTree(t, []treeEntry{
			{name: "redis/sentinel.conf", mode: 0644, uid: 999, gid: 999},
			{name: "redis/sentinel-entrypoint.sh", mode: 0755},
		}),
	}

	rep, err := Image(fake, "img", recipe.Sentinel())
	if err != nil {
		t.Fatal(err)
	}
	if err := rep.Err(); err != nil {
		t.Errorf("numeric redis ownership rejected: %s", err)
	}
}

func TestImageProblems(t *testing.T) {
	tests := []struct {
		desc   string
		config *docker.Config
		tree   func(*testing.T) []byte
		want   int
	}{
		{
			desc: "port not exposed",
			config: &docker.Config{
				Entrypoint: []string{"/redis/sentinel-entrypoint.sh"},
			},
			tree: goodSentinelTree,
			want: 1,
		},
		{
			desc: "wrong entrypoint",
			config: &docker.Config{
				ExposedPorts: map[docker.Port]struct{}{"26379/tcp": {}},
				Entrypoint:   []string{"redis-server"},
			},
			tree: goodSentinelTree,
			want: 1,
		},
		{
			desc:   "config file owned by root",
			config: goodSentinelConfig(),
			tree: func(t *testing.T) []byte {
				return makeTree(t, []treeEntry{
					{name: "redis/sentinel.conf", mode: 0644, uname: "root", gname: "root"},
					{name: "redis/sentinel-entrypoint.sh", mode: 0755, uname: "root", gname: "root"},
				})
			},
			want: 1,
		},
		{
			desc:   "entrypoint not executable",
			config: goodSentinelConfig(),
			tree: func(t *testing.T) []byte {
				return makeTree(t, []treeEntry{
					{name: "redis/sentinel.conf", mode: 0644, uname: "redis", gname: "redis"},
					{name: "redis/sentinel-entrypoint.sh", mode: 0644, uname: "root", gname: "root"},
				})
			},
			want: 1,
		},
		{
			desc:   "working directory empty",
			config: goodSentinelConfig(),
			tree: func(t *testing.T) []byte {
				return makeTree(t, []treeEntry{{name: "redis/", mode: 0755}})
			},
			want: 2,
		},
	}

	for _, test := range tests {
		fake := &fakeDocker{config: test.config, tree: test.tree(t)}
		rep, err := Image(fake, "img", recipe.Sentinel())
		if err != nil {
			t.Errorf("%q: inspect: %s", test.desc, err)
			continue
		}
		if len(rep.Problems) != test.want {
			t.Errorf("%q: got %d problems (%v), want %d", test.desc, len(rep.Problems), rep.Problems, test.want)
		}
		if rep.Err() == nil {
			t.Errorf("%q: Err() is nil despite problems", test.desc)
		}
	}
}
