package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/nicolas-rempulski/h-ubu/internal/admin"
	"github.com/nicolas-rempulski/h-ubu/internal/config"
	_ "github.com/nicolas-rempulski/h-ubu/internal/eventing"
	"github.com/nicolas-rempulski/h-ubu/internal/hub"
	"github.com/nicolas-rempulski/h-ubu/internal/observability"
)

func main() {
	path := flag.String("config", "cmd/hubctl/config.toml", "hub config path")
	flag.Parse()

	cfg := config.DefaultHubConfig()
	if _, err := os.Stat(*path); err == nil {
		loaded, err := config.LoadHubConfig(*path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hubctl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	observability.InitLogger("hubctl", cfg.LoggingConfig())

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("hubctl stopped")
		os.Exit(1)
	}
}

func run(cfg config.HubConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := buildHub(cfg)
	if err != nil {
		return err
	}
	if err := h.Start(); err != nil {
		return err
	}
	log.Info().Str("hub", h.Name()).Int("components", len(h.GetComponents())).Msg("hub started")

	<-ctx.Done()
	log.Info().Str("hub", h.Name()).Msg("shutting down")
	return h.Stop()
}

// buildHub creates the hub described by cfg without starting it.
func buildHub(cfg config.HubConfig) (*hub.Hub, error) {
	h := hub.New(hub.WithName(cfg.Name))
	if cfg.Admin.Enabled {
		if err := h.RegisterComponent(admin.NewServer(), cfg.ComponentConfig(config.AdminComponent)); err != nil {
			return nil, fmt.Errorf("register admin: %w", err)
		}
	}
	for _, name := range unusedTables(cfg, h) {
		log.Warn().Str("hub", h.Name()).Str("component", name).Msg("config table for a component that is not registered")
	}
	return h, nil
}

// unusedTables lists [components.<name>] tables matching no registered
// component, sorted.
func unusedTables(cfg config.HubConfig, h *hub.Hub) []string {
	var out []string
	for name := range cfg.Components {
		if h.GetComponent(name) == nil {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
