package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kapu/duelchess/internal/archive"
	appcfg "github.com/kapu/duelchess/internal/config"
	"github.com/kapu/duelchess/internal/duel"
	"github.com/kapu/duelchess/internal/msgcat"
	"github.com/kapu/duelchess/internal/obslog"
	"github.com/kapu/duelchess/internal/rules"
	"github.com/kapu/duelchess/internal/snapshot"
	"github.com/kapu/duelchess/internal/stats"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	store, err := stats.NewStore(stats.NewFileStore(cfg.StatsFile))
	if err != nil {
		log.Fatalf("stats store init error: %v", err)
	}

	orch := duel.NewOrchestrator(rules.New(), store)

	var snaps *snapshot.Store
	if cfg.RedisURL != "" {
		snaps, err = snapshot.New(cfg.RedisURL)
		if err != nil {
			log.Fatalf("snapshot store init error: %v", err)
		}
		orch.AttachSnapshots(snaps)
	}
	var arch *archive.Repository
	if cfg.DatabaseURL != "" {
		arch, err = archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		orch.AttachArchive(arch)
	}

	ctx := context.Background()
	if n, err := orch.Restore(ctx); err != nil {
		log.Printf("session restore error: %v", err)
	} else if n > 0 {
		log.Printf("restored %d active session(s)", n)
	}

	cat, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	// Console driver stands in for the chat transport during development;
	// the real transport invokes the same orchestrator operations.
	go runConsole(ctx, orch, cat)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if snaps != nil {
		_ = snaps.Close()
	}
	if arch != nil {
		_ = arch.Close()
	}
}
