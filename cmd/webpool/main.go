// Webpool serves a tiny demonstration site from a fixed-size worker pool.
//
// Startup sequence:
//  1. Load configuration (YAML/JSON file or defaults) and apply flag overrides.
//  2. Initialise the logger.
//  3. Create the worker pool.
//  4. Start the optional stats monitor.
//  5. Start the TCP listener feeding connections to the pool.
//  6. Block until an OS signal arrives or the listener retires itself, then
//     drain the pool and exit.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mv82/webpool/internal/config"
	"github.com/mv82/webpool/internal/logger"
	"github.com/mv82/webpool/internal/monitor"
	"github.com/mv82/webpool/internal/server"
	"github.com/mv82/webpool/pkg/pool"
)

func main() {
	defaults := config.Default()

	configFile := flag.String("config", "", "Path to YAML or JSON config file (optional; uses defaults if omitted)")
	addr := flag.String("addr", defaults.ListenAddr, "Address to listen on")
	poolSize := flag.Int("pool-size", defaults.PoolSize, "Number of worker goroutines")
	maxAccept := flag.Int("max-accept", defaults.MaxAccept, "Connections accepted before self-shutdown (0 = unlimited)")
	monitorAddr := flag.String("monitor", defaults.MonitorAddr, "Address for the stats endpoint (empty disables it)")
	logLevel := flag.String("log-level", defaults.LogLevel, "Minimum log level: debug, info, warn or error")
	flag.Parse()

	cfg := defaults
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config from %q: %v\n", *configFile, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// explicit flags win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.ListenAddr = *addr
		case "pool-size":
			cfg.PoolSize = *poolSize
		case "max-accept":
			cfg.MaxAccept = *maxAccept
		case "monitor":
			cfg.MonitorAddr = *monitorAddr
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(os.Stderr, cfg.Level())
	log.Infof("webpool starting up, pool size %d", cfg.PoolSize)

	for _, page := range []string{cfg.SuccessPage, cfg.NotFoundPage} {
		if _, err := os.Stat(page); err != nil {
			log.Warnf("page %s is not readable, requests for it will get a fallback body: %v", page, err)
		}
	}

	p, err := pool.New(cfg.PoolSize, pool.WithPanicHandler(func(workerID int, recovered interface{}, stack []byte) {
		log.Errorf("worker %d recovered from panic: %v\n%s", workerID, recovered, stack)
	}))
	if err != nil {
		log.Errorf("failed to create worker pool: %v", err)
		os.Exit(1)
	}

	var mon *monitor.Server
	if cfg.MonitorAddr != "" {
		mon = monitor.New(cfg.MonitorAddr, p, log)
		if err := mon.Start(); err != nil {
			log.Errorf("failed to start monitor: %v", err)
			os.Exit(1)
		}
	}

	srv := server.New(server.Config{
		Addr:         cfg.ListenAddr,
		MaxAccept:    cfg.MaxAccept,
		SuccessPage:  cfg.SuccessPage,
		NotFoundPage: cfg.NotFoundPage,
	}, p, log)
	if err := srv.Start(); err != nil {
		log.Errorf("failed to start server: %v", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("received signal %s, shutting down", sig)
	case <-srv.Done():
		log.Info("listener retired, shutting down")
	}

	// stop admitting connections, then drain in-flight and queued jobs
	srv.Stop()
	p.Shutdown()
	if mon != nil {
		mon.Stop()
	}

	stats := p.Stats()
	log.Infof("final stats: accepted %d, dropped %d, processed %d jobs, recovered %d panics",
		srv.Accepted(), srv.Dropped(), stats.TotalProcessed, stats.TotalRecovered)
	log.Info("webpool shut down cleanly")
}
