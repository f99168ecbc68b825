package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rollcall/internal/config"
	"rollcall/internal/queue"
	"rollcall/internal/store"
)

// Worker consumes check-in events and keeps the live dashboard state in
// Redis: a running attendance counter per session plus a pub/sub channel
// dashboard clients subscribe to.
func main() {
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

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for check-in events...")
	for msg := range messages {
		if msg.Type != queue.TypeCheckin {
			continue
		}

		evt, err := queue.DecodeCheckin(msg.Body)
		if err != nil {
			log.Printf("bad checkin event: %v", err)
			continue
		}

		counterKey := "rollcall:session:" + evt.SessionID + ":count"
		count, err := redisClient.Client.Incr(ctx, counterKey).Result()
		if err != nil {
			log.Printf("counter incr failed for %s: %v", evt.SessionID, err)
			continue
		}

		update, _ := json.Marshal(map[string]any{
			"session_id":   evt.SessionID,
			"session_name": evt.SessionName,
			"subject_name": evt.SubjectName,
			"count":        count,
			"at":           evt.At,
		})
		if err := redisClient.Client.Publish(ctx, cfg.DashboardChan, update).Err(); err != nil {
			log.Printf("dashboard publish failed: %v", err)
		}

		log.Printf("session %s: %s checked in (%d total)", evt.SessionID, evt.SubjectName, count)
	}

	log.Println("worker stopped")
}
