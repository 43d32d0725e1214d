package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/maasd/maasd/internal/api"
	"github.com/maasd/maasd/internal/config"
	"github.com/maasd/maasd/internal/eventlog"
	"github.com/maasd/maasd/internal/ffi/maacore"
	"github.com/maasd/maasd/internal/logging"
	"github.com/maasd/maasd/internal/observability"
	"github.com/maasd/maasd/internal/router"
	"github.com/maasd/maasd/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to the maasd TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "maasd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	observability.InitLogger("maasd")
	if lvl, ok := logging.ParseLevel(cfg.Log.Level); ok {
		zerolog.SetGlobalLevel(lvl)
	}
	observability.RegisterMetrics()

	core := maacore.New()
	if err := core.SetUserDir("."); err != nil {
		return fmt.Errorf("engine user dir: %w", err)
	}
	if err := core.LoadResource(cfg.Resource.Path); err != nil {
		return fmt.Errorf("resource load (%s): %w", cfg.Resource.Path, err)
	}
	version, err := core.Version()
	if err != nil {
		return fmt.Errorf("engine version: %w", err)
	}

	store, err := eventlog.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("event store open (%s): %w", cfg.Database.Path, err)
	}
	defer store.Close()

	if cfg.Database.DropOnStartup {
		if err := store.DropAll(); err != nil {
			return fmt.Errorf("event store wipe: %w", err)
		}
		log.Info().Msg("event store wiped on startup")
	}

	manager := session.NewManager(core, router.Sink(store))
	defer manager.CloseAll()

	log.Info().
		Str("engine_version", version).
		Str("db", cfg.Database.Path).
		Str("addr", cfg.Server.Addr).
		Msg("maasd ready")
	core.Log("info", "maasd attached")

	srv := api.New(core, manager, store)
	return srv.Run(cfg.Server.Addr)
}
