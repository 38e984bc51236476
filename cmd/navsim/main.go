package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tactics/navgrid/internal/app"
	"tactics/navgrid/internal/telemetry"
)

func main() {
	cfg := app.DefaultConfig()
	cfg.Logger = telemetry.WrapLogger(log.Default())
	cfg.ApplyEnv(cfg.Logger)

	flag.StringVar(&cfg.ScenePath, "scene", cfg.ScenePath, "scene YAML to simulate")
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flag.IntVar(&cfg.Loop.TickRate, "tick-rate", cfg.Loop.TickRate, "simulation ticks per second")
	flag.BoolVar(&cfg.Observability.EnablePprof, "pprof", cfg.Observability.EnablePprof, "serve /debug/pprof")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}
