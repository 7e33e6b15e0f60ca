// SPDX-License-Identifier:Apache-2.0

package recipe

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// overridesFile is the raw YAML form of a build overrides file.
type overridesFile struct {
	Registry string              `json:"registry,omitempty"`
	Tag      string              `json:"tag,omitempty"`
	Base     *baseOverride       `json:"base,omitempty"`
	Roles    map[string]roleFile `json:"roles,omitempty"`
}

type baseOverride struct {
	Image  string `json:"image,omitempty"`
	Digest string `json:"digest,omitempty"`
}

type roleFile struct {
	ConfigFile string `json:"config-file,omitempty"`
	Entrypoint string `json:"entrypoint,omitempty"`
	Port       int    `json:"port,omitempty"`
	Owner      string `json:"owner,omitempty"`
}

// Overrides adjusts the canonical recipes with operator-supplied
// settings. The zero value changes nothing.
type Overrides struct {
	// Registry and Tag name the built images.
	Registry string
	Tag      string

	base  *baseOverride
	roles map[Role]roleFile
}

// Parse parses and validates the contents of an overrides file.
func Parse(bs []byte) (*Overrides, error) {
	var raw overridesFile
	if err := yaml.UnmarshalStrict(bs, &raw); err != nil {
		return nil, errors.Wrap(err, "could not parse overrides")
	}

	o := &Overrides{
		Registry: raw.Registry,
		Tag:      raw.Tag,
		base:     raw.Base,
		roles:    map[Role]roleFile{},
	}
	for name, rf := range raw.Roles {
		role := Role(name)
		if _, err := ForRole(role); err != nil {
			return nil, err
		}
		o.roles[role] = rf
	}

	// Everything the file can change still has to produce recipes
	// that build, so validate the outcome rather than the raw fields.
	for _, role := range Roles {
		r, err := ForRole(role)
		if err != nil {
			return nil, err
		}
		if err := o.Apply(r).Validate(); err != nil {
			return nil, errors.Wrapf(err, "overrides leave role %q unbuildable", role)
		}
	}
	return o, nil
}

// Load reads and parses the overrides file at path.
func Load(path string) (*Overrides, error) {
	bs, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read overrides")
	}
	return Parse(bs)
}

// Apply returns a copy of r with the overrides applied.
func (o *Overrides) Apply(r Recipe) Recipe {
	if o == nil {
		return r
	}
	if o.base != nil {
		if o.base.Image != "" {
			r.BaseImage = o.base.Image
		}
		if o.base.Digest != "" {
			r.BaseDigest = o.base.Digest
		}
	}
	rf, ok := o.roles[r.Role]
	if !ok {
		return r
	}
	if rf.ConfigFile != "" {
		r.ConfigFile = rf.ConfigFile
	}
	if rf.Entrypoint != "" {
		r.Entrypoint = rf.Entrypoint
	}
	if rf.Port != 0 {
		r.Port = rf.Port
	}
	if rf.Owner != "" {
		r.Owner = rf.Owner
	}
	return r
}
