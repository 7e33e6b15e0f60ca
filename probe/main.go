// SPDX-License-Identifier:Apache-2.0

// The probe binary watches a deployed sentinel or cluster node and
// exports its health as Prometheus metrics. With -check it probes
// once and exits, which is the shape container healthchecks want.
package main

import (
	"flag"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.redpack.dev/redpack/internal/health"
	"go.redpack.dev/redpack/internal/logging"
	"go.redpack.dev/redpack/internal/recipe"
	"go.redpack.dev/redpack/internal/version"
	"go.redpack.dev/redpack/probe/collector"
)

var (
	mode        = flag.String("mode", "sentinel", fmt.Sprintf("what to probe, one of [%s]", rolesString()))
	addr        = flag.String("addr", "", "host:port of the probed node (defaults to localhost with the mode's port)")
	master      = flag.String("master", "mymaster", "monitored master name, sentinel mode only")
	check       = flag.Bool("check", false, "probe once and exit 0 on healthy, 1 otherwise")
	metricsHost = flag.String("host", os.Getenv("REDPACK_HOST"), "metrics HTTP host address")
	metricsPort = flag.Uint("metrics-port", 7479, "port to listen on for the metrics endpoint")
	metricsPath = flag.String("metrics-path", "/metrics", "path under which to expose metrics")
	logLevel    = flag.String("log-level", "info", fmt.Sprintf("log level, one of [%s]", strings.Join(logging.Levels, ", ")))
)

func rolesString() string {
	names := make([]string, 0, len(recipe.Roles))
	for _, r := range recipe.Roles {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}

func metricsHandler(logger log.Logger) (http.Handler, error) {
	registry := prometheus.NewRegistry()
	switch recipe.Role(*mode) {
	case recipe.RoleSentinel:
		registry.MustRegister(collector.NewSentinel(logger, *addr, *master))
	case recipe.RoleCluster:
		registry.MustRegister(collector.NewCluster(logger, *addr))
	default:
		return nil, fmt.Errorf("unknown mode %q, must be one of [%s]", *mode, rolesString())
	}

	handlerOpts := promhttp.HandlerOpts{
		ErrorLog:      stdlog.New(log.NewStdlibAdapter(level.Error(logger)), "", 0),
		ErrorHandling: promhttp.ContinueOnError,
		Registry:      registry,
	}
	return promhttp.HandlerFor(registry, handlerOpts), nil
}

// checkOnce probes the target a single time.
func checkOnce(logger log.Logger) error {
	switch recipe.Role(*mode) {
	case recipe.RoleSentinel:
		s := health.NewSentinel(*addr)
		defer s.Close()
		if err := s.Ping(); err != nil {
			return err
		}
		host, port, err := s.MasterAddr(*master)
		if err != nil {
			return err
		}
		slaves, err := s.SlaveCount(*master)
		if err != nil {
			return err
		}
		level.Info(logger).Log("event", "checked", "master", *master, "masterAddr", host+":"+port, "slaves", slaves)
		return nil

	case recipe.RoleCluster:
		c := health.NewCluster(*addr)
		defer c.Close()
		if err := c.Ping(); err != nil {
			return err
		}
		st, err := c.Status()
		if err != nil {
			return err
		}
		level.Info(logger).Log("event", "checked", "stateOK", st.StateOK, "knownNodes", st.KnownNodes, "slotsAssigned", st.SlotsAssigned)
		if !st.StateOK {
			return fmt.Errorf("cluster state is not ok, %d/16384 slots assigned", st.SlotsAssigned)
		}
		return nil
	}
	return fmt.Errorf("unknown mode %q, must be one of [%s]", *mode, rolesString())
}

func main() {
	flag.Parse()

	logger, err := logging.Init(*logLevel)
	if err != nil {
		fmt.Printf("failed to initialize logging: %s\n", err)
		os.Exit(1)
	}

	if *addr == "" {
		port := recipe.SentinelPort
		if recipe.Role(*mode) == recipe.RoleCluster {
			port = recipe.ClusterPort
		}
		*addr = fmt.Sprintf("localhost:%d", port)
	}

	if *check {
		if err := checkOnce(logger); err != nil {
			level.Error(logger).Log("event", "checkFailed", "target", *addr, "error", err)
			os.Exit(1)
		}
		return
	}

	level.Info(logger).Log("version", version.Version(), "commit", version.CommitHash(), "branch", version.Branch(), "goversion", version.GoString(), "msg", "redpack probe starting "+version.String())

	handler, err := metricsHandler(logger)
	if err != nil {
		level.Error(logger).Log("op", "startup", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle(*metricsPath, handler)
	level.Info(logger).Log("msg", "starting exporter", "target", *addr, "metricsPath", *metricsPath, "port", *metricsPort)

	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", *metricsHost, *metricsPort),
		ReadTimeout: 3 * time.Second,
		Handler:     mux,
	}
	if err := srv.ListenAndServe(); err != nil {
		level.Error(logger).Log("error", err)
		os.Exit(1)
	}
}
