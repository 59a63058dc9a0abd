package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/duplifind/duplifind/internal/cache"
	"github.com/duplifind/duplifind/internal/config"
	"github.com/duplifind/duplifind/internal/errs"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Hash Cache maintenance",
	}
	cmd.AddCommand(newCachePruneCmd())
	return cmd
}

func newCachePruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Evict Hash Cache entries beyond the configured size cap or age cap",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCachePrune(cmd.Context())
		},
	}
}

func runCachePrune(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return errs.Input("load config", err)
	}
	if !cfg.Cache.Enabled {
		fmt.Println("cache is disabled, nothing to prune")
		return nil
	}

	c, err := cache.Open(cfg.CacheOptions())
	if err != nil {
		return errs.Cache("open", err)
	}
	defer c.Close()

	evicted, err := c.Prune(ctx, time.Now())
	if err != nil {
		return errs.Cache("prune", err)
	}

	if fi, statErr := os.Stat(cfg.Cache.Path); statErr == nil {
		fmt.Printf("evicted %d entries, cache now %s\n", evicted, humanize.Bytes(uint64(fi.Size())))
	} else {
		fmt.Printf("evicted %d entries\n", evicted)
	}
	return nil
}
