package main

import (
	"context"
	"log"

	"github.com/kokoro-apps/empathy-diary/internal/ai"
	"github.com/kokoro-apps/empathy-diary/internal/config"
	"github.com/kokoro-apps/empathy-diary/internal/db"
	"github.com/kokoro-apps/empathy-diary/internal/diary"
	"github.com/kokoro-apps/empathy-diary/internal/httpapi"
	"github.com/kokoro-apps/empathy-diary/internal/store/rabbitmq"
	"github.com/kokoro-apps/empathy-diary/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	db.Migrate(gdb)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()

	provider, err := ai.DefaultRegistry(cfg).Get(context.Background(), cfg.AIProvider, "")
	if err != nil {
		log.Fatalf("provider: %v", err)
	}

	// Empathy replies degrade to "not configured" when the broker is down.
	var publisher diary.JobPublisher
	if pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue); err != nil {
		log.Printf("rabbit unavailable, empathy replies disabled: %v", err)
	} else {
		publisher = pub
		defer pub.Close()
	}

	r := httpapi.NewRouter(gdb, cfg, rds, provider, publisher)

	log.Printf("server listening on %s", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
