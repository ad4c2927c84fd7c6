package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Lumos-Labs-HQ/orgseed/internal/config"
	"github.com/Lumos-Labs-HQ/orgseed/internal/logger"
	"github.com/Lumos-Labs-HQ/orgseed/internal/remote"
	"github.com/Lumos-Labs-HQ/orgseed/internal/seeder"
	"github.com/Lumos-Labs-HQ/orgseed/internal/state"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openRemote(cfg *config.Config) (remote.Store, error) {
	opts := remote.Options{
		FixturesDir: cfg.Remote.FixturesDir,
		APIVersion:  cfg.Remote.APIVersion,
		Timeout:     cfg.Timeout(),
	}
	if cfg.Remote.Provider == "rest" {
		url, token, err := cfg.GetRemoteCredentials()
		if err != nil {
			return nil, err
		}
		opts.InstanceURL = url
		opts.AccessToken = token
	}

	store, err := remote.New(cfg.Remote.Provider, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s remote: %w", cfg.Remote.Provider, err)
	}
	return store, nil
}

func openState(cfg *config.Config) (state.Store, error) {
	url, err := cfg.GetStateURL()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := state.New(ctx, cfg.State.Provider, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s state store: %w", cfg.State.Provider, err)
	}
	return store, nil
}

func seederOptions(cfg *config.Config) seeder.Options {
	return seeder.Options{
		LogDir:       cfg.LogDir,
		RemoteName:   cfg.Remote.Provider,
		Pause:        cfg.Pause(),
		SuspendRules: cfg.Run.SuspendRules,
		Parallelism:  cfg.Run.Parallelism,
		Seed:         cfg.Run.Seed,
		Exclude:      cfg.ExcludeFields,
		Overrides:    cfg.Overrides,
		Log:          logger.Console{},
	}
}
