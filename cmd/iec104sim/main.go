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
	"github.com/danmuck/wireprobe/internal/protocol/iec104/outstation"
)

func main() {
	path := flag.String("config", "cmd/iec104sim/station.toml", "station config path")
	addr := flag.String("addr", "", "listen address override")
	initCfg := flag.Bool("init", false, "write a station template to -config and exit")
	force := flag.Bool("force", false, "overwrite an existing config with -init")
	flag.Parse()

	if *initCfg {
		if err := config.WriteTemplate(*path, "station", *force); err != nil {
			fail(err)
		}
		fmt.Printf("wrote %s\n", *path)
		return
	}

	logger := observability.InitLogger("iec104sim")
	cfg, err := config.LoadStationConfig(*path)
	if err != nil {
		fail(err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	behavior, err := cfg.Behavior()
	if err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := outstation.New(behavior, logger)
	if err := srv.Listen(cfg.Addr); err != nil {
		fail(err)
	}
	logger.Info().Int("points", len(behavior.Points)).Uint16("ca", behavior.CommonAddr).Msg("station ready")
	if err := srv.Serve(ctx); err != nil {
		fail(err)
	}
	st := srv.Stats()
	logger.Info().
		Int64("connections", st.Connections).
		Int64("frames_in", st.FramesIn).
		Int64("frames_out", st.FramesOut).
		Msg("station stopped")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "iec104sim: %v\n", err)
	os.Exit(1)
}
