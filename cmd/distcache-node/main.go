// Command distcache-node runs one node of a distributed in-memory
// cache speaking a Redis-compatible line protocol.
//
// Wiring order follows _examples/original_source/main.cpp: build the
// hash ring and circuit breaker first (the TCP front end's ownership
// and health gates), then the cache, then the durability log and
// snapshot store, recover prior state, and only then start accepting
// connections. Flag parsing uses github.com/spf13/pflag, grounded on
// _examples/calvinalkan-agent-task's CLI entry points.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/distcache-io/distcache/internal/breaker"
	"github.com/distcache-io/distcache/internal/config"
	"github.com/distcache-io/distcache/internal/discovery"
	"github.com/distcache-io/distcache/internal/hashring"
	"github.com/distcache-io/distcache/internal/logging"
	"github.com/distcache-io/distcache/internal/lrucache"
	"github.com/distcache-io/distcache/internal/metrics"
	"github.com/distcache-io/distcache/internal/node"
	"github.com/distcache-io/distcache/internal/server"
	"github.com/distcache-io/distcache/internal/snapshot"
	"github.com/distcache-io/distcache/internal/status"
	"github.com/distcache-io/distcache/internal/wal"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout *os.File) int {
	log := logging.NewStdLogger()

	flags := flag.NewFlagSet("distcache-node", flag.ContinueOnError)
	nodeID := flags.String("node-id", "node-1", "this node's identifier in the hash ring")
	tcpPort := flags.Int("tcp-port", config.DefaultTCPPort, "port for the RESP-style TCP listener")
	httpPort := flags.Int("http-port", config.DefaultHTTPPort, "port for the HTTP status/metrics listener")
	walPath := flags.String("wal-path", config.DefaultWALPath, "path to the write-ahead log file")
	snapshotPath := flags.String("snapshot-path", config.DefaultSnapshotPath, "path to the snapshot file")
	configPath := flags.String("config", "", "optional path to a hot-reloadable config file")
	seedNodes := flags.StringArray("seed-node", nil, "peer in id@host:port form; repeatable")

	if err := flags.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		log.Error("failed to parse flags", "err", err)
		return 1
	}

	cfg := config.Default()
	cfg.NodeID = *nodeID
	cfg.TCPPort = *tcpPort
	cfg.HTTPPort = *httpPort
	cfg.WALPath = *walPath
	cfg.SnapshotPath = *snapshotPath
	cfg.SeedNodes = *seedNodes
	cfg.Validate()

	fmt.Fprintf(stdout, "distcache-node %s starting\n", cfg.NodeID)
	fmt.Fprintf(stdout, "  tcp=%d http=%d wal=%s snapshot=%s\n", cfg.TCPPort, cfg.HTTPPort, cfg.WALPath, cfg.SnapshotPath)

	var hotReload *config.HotReload
	if *configPath != "" {
		hr, err := config.NewHotReload(cfg, config.HotReloadOptions{ConfigPath: *configPath})
		if err != nil {
			log.Error("failed to start config hot-reload", "path", *configPath, "err", err)
			return 1
		}
		if err := hr.Start(); err != nil {
			log.Error("failed to start config watcher", "err", err)
			return 1
		}
		defer hr.Stop()
		hotReload = hr
		cfg = hr.Current()
	}

	ring := hashring.New(cfg.VirtualNodes)
	ring.AddNode(cfg.NodeID)

	cb, err := breaker.New(cfg.BreakerFailureThreshold, cfg.BreakerOpenTimeout)
	if err != nil {
		log.Error("invalid breaker configuration", "err", err)
		return 1
	}

	cache, err := lrucache.New(lrucache.WithCapacity(cfg.CacheCapacity), lrucache.WithDefaultTTL(cfg.DefaultTTL))
	if err != nil {
		log.Error("invalid cache configuration", "err", err)
		return 1
	}
	defer cache.Close()

	log1, err := wal.Open(cfg.WALPath)
	if err != nil {
		log.Error("failed to open write-ahead log", "path", cfg.WALPath, "err", err)
		return 1
	}

	store, err := snapshot.New(cfg.SnapshotPath)
	if err != nil {
		log.Error("failed to open snapshot store", "path", cfg.SnapshotPath, "err", err)
		return 1
	}

	registry := discovery.New(cfg.NodeID, "localhost", cfg.HTTPPort)
	for _, seed := range cfg.SeedNodes {
		id, addr, port, err := parseSeedNode(seed)
		if err != nil {
			log.Error("invalid --seed-node value", "value", seed, "err", err)
			return 1
		}
		ring.AddNode(id)
		registry.AddSeedNode(id, addr, port)
	}

	promExporter, err := otelprometheus.New()
	if err != nil {
		log.Error("failed to create prometheus exporter", "err", err)
		return 1
	}
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExporter))
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("otel provider shutdown error", "err", err)
		}
	}()

	mc, err := metrics.New(meterProvider)
	if err != nil {
		log.Error("failed to create metrics collector", "err", err)
		return 1
	}

	n := node.New(cfg.NodeID, cache, log1, store, ring, cb, registry, mc, node.Options{
		SnapshotEvery: cfg.SnapshotEvery,
		SweepInterval: cfg.SweepInterval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("recovering state", "wal", cfg.WALPath, "snapshot", cfg.SnapshotPath)
	if err := n.Recover(ctx); err != nil {
		log.Error("recovery failed", "err", err)
		return 1
	}

	tcpSrv := server.New(cfg.NodeID, cache, log1, ring, cb, mc)
	statusSrv := status.New(cfg.NodeID, ring, cb, mc)
	httpSrv := &http.Server{
		Addr:    net.JoinHostPort("", strconv.Itoa(cfg.HTTPPort)),
		Handler: statusSrv.Handler(),
	}

	errCh := make(chan error, 2)
	go func() {
		addr := net.JoinHostPort("", strconv.Itoa(cfg.TCPPort))
		if err := tcpSrv.ListenAndServe(ctx, addr); err != nil {
			errCh <- fmt.Errorf("tcp server: %w", err)
		}
	}()
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	n.StartSweeper(tcpSrv.ActiveConnections)
	registry.Start(5 * time.Second)

	log.Info("ready", "node", cfg.NodeID, "tcp_port", cfg.TCPPort, "http_port", cfg.HTTPPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		log.Error("fatal server error", "err", err)
		cancel()
		return 1
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := n.Shutdown(shutdownCtx); err != nil {
		log.Error("node shutdown error", "err", err)
	}
	tcpSrv.Close()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", "err", err)
	}
	if hotReload != nil {
		hotReload.Stop()
	}

	log.Info("shutdown complete", "node", cfg.NodeID)
	return 0
}

// parseSeedNode parses "id@host:port" into its components.
func parseSeedNode(s string) (id, addr string, port int, err error) {
	idPart, hostPort, ok := strings.Cut(s, "@")
	if !ok {
		return "", "", 0, fmt.Errorf("expected id@host:port, got %q", s)
	}
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid host:port in %q: %w", s, err)
	}
	p, err := strconv.Atoi(portStr)
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid port in %q: %w", s, err)
	}
	return idPart, host, p, nil
}
