// SPDX-License-Identifier:Apache-2.0

// Package logging sets up structured logging in a uniform way for all
// redpack binaries.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// The supported log levels, in order of increasing severity.
const (
	LevelAll   = "all"
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelNone  = "none"
)

// Levels is the list of valid settings for the -log-level flag.
var Levels = []string{LevelAll, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelNone}

// Init returns a logger configured with timestamping and source code
// locations, filtered to the given level. Log output goes to stdout in
// logfmt form.
func Init(lvl string) (log.Logger, error) {
	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout))
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	opt, err := parseLevel(lvl)
	if err != nil {
		return nil, err
	}
	return level.NewFilter(l, opt), nil
}

func parseLevel(lvl string) (level.Option, error) {
	switch strings.ToLower(lvl) {
	case LevelAll:
		return level.AllowAll(), nil
	case LevelDebug:
		return level.AllowDebug(), nil
	case LevelInfo:
		return level.AllowInfo(), nil
	case LevelWarn:
		return level.AllowWarn(), nil
	case LevelError:
		return level.AllowError(), nil
	case LevelNone:
		return level.AllowNone(), nil
	}
	return nil, fmt.Errorf("invalid log level %q, must be one of [%s]", lvl, strings.Join(Levels, ", "))
}
