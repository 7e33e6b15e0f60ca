// SPDX-License-Identifier:Apache-2.0

package env

import "os"

// Registry returns the image registry prefix to use when none is given
// on the command line.
func Registry() string {
	if v := os.Getenv("REDPACK_REGISTRY"); v != "" {
		return v
	}
	return "redpack"
}

// Tag returns the image tag to use when none is given on the command
// line.
func Tag() string {
	if v := os.Getenv("REDPACK_TAG"); v != "" {
		return v
	}
	return "dev"
}
