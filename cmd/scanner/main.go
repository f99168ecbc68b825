package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rollcall/internal/checkin"
	"rollcall/internal/config"
	"rollcall/internal/materials"
	"rollcall/internal/notify"
	"rollcall/internal/queue"
	"rollcall/internal/session"
	"rollcall/internal/store"
	"rollcall/internal/workflow"
)

// Scanner runs the check-in workflow for one session at an operator's
// station. Decoded QR payloads arrive one per line on stdin, the way an
// attached scanner writes them.
func main() {
	sessionID := flag.String("session", "", "session id to scan for")
	instructorID := flag.String("instructor", "", "recording instructor id")
	flag.Parse()
	if *sessionID == "" {
		log.Fatal("-session is required")
	}

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	}

	proc := workflow.NewProcessor(
		checkin.NewService(checkin.NewRepository(db.Client)),
		materials.NewFanout(materials.NewRepository(db.Client)),
		notify.NewNotifier(notify.NewRepository(db.Client)),
		q,
	)

	wf := workflow.New(
		session.NewRepository(db.Client),
		proc,
		workflow.NewLineSource(os.Stdin),
		workflow.WithDisplayHold(cfg.ScanDisplayHold),
		workflow.WithStatusFunc(func(status string) { log.Printf("status: %s", status) }),
	)

	if err := wf.Run(ctx, *sessionID, *instructorID); err != nil {
		log.Fatalf("workflow failed: %v", err)
	}
}
