// Command zonewardd runs the recursive-and-authoritative resolver:
// it loads one zone file, seeds the shared cache from it, and serves
// UDP queries, answering in-zone questions from the zone and
// everything else by walking the DNS hierarchy from a configured
// root. Signal handling and startup sequencing follow the teacher's
// flat main.go; the CLI surface itself is rebuilt on spf13/cobra,
// present but unused in the teacher's go.mod, to match this spec's
// positional-argument contract.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/semihalev/log"
	"github.com/spf13/cobra"

	"github.com/zoneward/zoneward/internal/authority"
	"github.com/zoneward/zoneward/internal/cache"
	"github.com/zoneward/zoneward/internal/config"
	"github.com/zoneward/zoneward/internal/dispatcher"
	"github.com/zoneward/zoneward/internal/recursor"
	"github.com/zoneward/zoneward/internal/server"
	"github.com/zoneward/zoneward/internal/zone"
)

var configPath string
var port int

func main() {
	root := &cobra.Command{
		Use:   "zonewardd <root_ip> <zone_file>",
		Short: "Recursive DNS resolver authoritative for one zone",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], args[1])
		},
	}

	root.Flags().IntVar(&port, "port", 53, "UDP listen port, 0 for ephemeral")
	root.Flags().StringVar(&configPath, "config", "", "optional TOML overrides file")

	if err := root.Execute(); err != nil {
		log.Crit("zonewardd failed", "error", err.Error())
	}
}

func run(rootIP, zoneFile string) error {
	cfg := config.Default()
	cfg.RootIP = rootIP
	cfg.ZoneFile = zoneFile
	cfg.Port = port

	if err := config.LoadOverrides(cfg, configPath); err != nil {
		log.Crit("Config loading failed", "error", err.Error())
	}

	lvl, err := log.LvlFromString(cfg.LogLevel)
	if err != nil {
		log.Crit("Log verbosity level unknown", "level", cfg.LogLevel)
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StdoutHandler))

	log.Info("Starting zoneward...", "root_ip", cfg.RootIP, "zone_file", cfg.ZoneFile)

	z, err := zone.Load(cfg.ZoneFile)
	if err != nil {
		log.Crit("Zone file parse failed", "path", cfg.ZoneFile, "error", err.Error())
		return fmt.Errorf("zone load: %w", err)
	}

	c := cache.New(cfg.SweepInterval.Duration)
	z.Seed(c)

	auth := authority.New(c, z.Origin)
	rec := recursor.New(c, cfg.RootIP, cfg.UpstreamTimeout.Duration)
	disp := dispatcher.New(c, auth, rec, cfg.RootIP)

	var watcher *zone.Watcher
	if cfg.WatchZone {
		watcher, err = zone.NewWatcher(cfg.ZoneFile)
		if err != nil {
			log.Warn("Zone watcher setup failed, hot reload disabled", "error", err.Error())
		} else {
			go watcher.Run(c)
			defer watcher.Close()
		}
	}

	srv := server.New(cfg.Port, disp)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	// Give Run a brief window to either bind (and log "Bound to port
	// <N>") or fail before we start blocking on signals.
	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		log.Info("Stopping zoneward...")
		return srv.Shutdown()
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
}
