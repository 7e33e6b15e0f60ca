// SPDX-License-Identifier:Apache-2.0

// Package dockerfile renders a recipe into the container build file
// the Docker daemon consumes. Rendering is deterministic: the same
// recipe always produces byte-identical output, so unchanged inputs
// rebuild into identical image layers.
package dockerfile

import (
	"fmt"
	"strings"

	"go.redpack.dev/redpack/internal/recipe"
)

// Instruction is one line of a build file.
type Instruction interface {
	render() string
}

// From selects the base image.
type From struct {
	Image string
}

func (i From) render() string { return "FROM " + i.Image }

// Workdir creates and switches to a directory inside the image.
type Workdir struct {
	Dir string
}

func (i Workdir) render() string { return "WORKDIR " + i.Dir }

// Copy places a file from the build context into the image.
type Copy struct {
	Src, Dst string
}

func (i Copy) render() string { return fmt.Sprintf("COPY %s %s", i.Src, i.Dst) }

// Run executes a shell command in a new layer.
type Run struct {
	Cmd string
}

func (i Run) render() string { return "RUN " + i.Cmd }

// Expose declares a listening port. Advisory metadata; it does not
// enforce binding.
type Expose struct {
	Port int
}

func (i Expose) render() string { return fmt.Sprintf("EXPOSE %d", i.Port) }

// Entrypoint designates the container's first process, in exec form.
type Entrypoint struct {
	Cmd []string
}

func (i Entrypoint) render() string {
	quoted := make([]string, 0, len(i.Cmd))
	for _, c := range i.Cmd {
		quoted = append(quoted, fmt.Sprintf("%q", c))
	}
	return fmt.Sprintf("ENTRYPOINT [%s]", strings.Join(quoted, ", "))
}

// Render serializes instructions into build file syntax.
func Render(ins []Instruction) []byte {
	var b strings.Builder
	for _, i := range ins {
		b.WriteString(i.render())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// ForRecipe returns the build instructions for one image recipe:
// create the working directory, place the configuration file there and
// hand it to the store's service account, place the entrypoint script
// and mark it executable, declare the listening port, and designate
// the script as the startup command. The executable grant is explicit
// for both roles so startup never depends on the permissions the
// script happened to carry outside the build.
func ForRecipe(r recipe.Recipe) []Instruction {
	return []Instruction{
		From{Image: r.BaseRef()},
		Workdir{Dir: r.WorkDir},
		Copy{Src: r.ConfigFile, Dst: r.ConfigFile},
		Run{Cmd: fmt.Sprintf("chown %s %s", r.Owner, r.ConfigPath())},
		Copy{Src: r.Entrypoint, Dst: r.Entrypoint},
		Run{Cmd: "chmod +x " + r.EntrypointPath()},
		Expose{Port: r.Port},
		Entrypoint{Cmd: []string{r.EntrypointPath()}},
	}
}

// RenderRecipe is shorthand for Render(ForRecipe(r)).
func RenderRecipe(r recipe.Recipe) []byte {
	return Render(ForRecipe(r))
}
