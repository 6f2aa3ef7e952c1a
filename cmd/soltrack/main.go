package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/0xsamyy/soltrack/internal/analyzer"
	"github.com/0xsamyy/soltrack/internal/config"
	"github.com/0xsamyy/soltrack/internal/health"
	"github.com/0xsamyy/soltrack/internal/notify"
	"github.com/0xsamyy/soltrack/internal/queue"
	"github.com/0xsamyy/soltrack/internal/store"
	"github.com/0xsamyy/soltrack/internal/telegram"
	"github.com/0xsamyy/soltrack/internal/tracker"
	"github.com/0xsamyy/soltrack/internal/worker"
	tg "github.com/go-telegram/bot"
	"golang.org/x/sync/semaphore"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lmsgprefix)
	log.SetPrefix("soltrack ")

	cfg := config.MustLoad()
	log.Println(cfg.RedactedSummary())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.NewBolt(cfg.DBPath)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer func() {
		if e := st.Close(); e != nil {
			log.Printf("store close: %v", e)
		}
	}()

	q := queue.New()

	// One process-wide limiter for all upstream fetches, independent of
	// the worker count.
	sem := semaphore.NewWeighted(int64(cfg.SemaphoreLimit))
	an := analyzer.New(cfg.HeliusAPIURL, cfg.SolanaRPCURL, sem, cfg.FeeThresholdLamports)

	tm := tracker.NewManager(cfg.HeliusWSS, cfg.Commitment, cfg.MaxRetry, q)
	defer tm.StopAll()
	hlth := health.New(tm, st, q)

	bot, err := tg.New(cfg.TelegramBotToken)
	if err != nil {
		log.Fatalf("telegram init: %v", err)
	}

	th := telegram.New(bot, st, hlth, cfg.WhitelistedUserIDs, cancel)
	nt := notify.New(st, th, cfg.WhitelistedUserIDs)

	rec := tracker.NewReconciler(st, tm, cfg.ReconcileInterval)
	go rec.Run(ctx)

	pool := worker.NewPool(q, an, nt)
	go pool.Run(ctx, cfg.WorkerCount)

	log.Printf("started; %d workers, reconciling every %s", cfg.WorkerCount, cfg.ReconcileInterval)
	th.Run(ctx)
	log.Println("shutdown complete")
}
