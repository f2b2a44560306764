package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/wireprobe/internal/config"
	"github.com/danmuck/wireprobe/internal/observability"
	"github.com/danmuck/wireprobe/internal/probes"
	"github.com/danmuck/wireprobe/internal/probes/iec104"
	"github.com/danmuck/wireprobe/internal/server"
)

func main() {
	path := flag.String("config", "cmd/probectl/config.toml", "probectl config path")
	initCfg := flag.Bool("init", false, "write a config template to -config and exit")
	force := flag.Bool("force", false, "overwrite an existing config with -init")
	flag.Parse()

	if *initCfg {
		if err := config.WriteTemplate(*path, "probe", *force); err != nil {
			fmt.Fprintf(os.Stderr, "probectl: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *path)
		return
	}

	logger := observability.InitLogger("probectl")
	cfg, err := loadRuntimeConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "probectl: %v\n", err)
		os.Exit(1)
	}

	registry := probes.NewRegistry()
	registry.Register(iec104.NewModule(iec104.NewProber(cfg.IEC104, logger)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node := server.Appear(cfg.Server, registry, logger)
	if err := node.Serve(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "probectl: %v\n", err)
		os.Exit(1)
	}
}
