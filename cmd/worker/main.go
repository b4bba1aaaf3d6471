package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"eventpass/internal/cloudinary"
	"eventpass/internal/config"
	"eventpass/internal/credential"
	"eventpass/internal/queue"
	"eventpass/internal/render"
	"eventpass/internal/store"
)

// Worker renders registered teams' credentials and hosts them on Cloudinary.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend != config.QueueRedis {
		log.Fatalf("worker needs QUEUE_BACKEND=redis, got %q", cfg.QueueBackend)
	}
	if cfg.StoreBackend == config.StoreMemory {
		log.Fatalf("worker cannot share a memory store with the api")
	}

	db, err := store.Open(ctx, cfg.StoreBackend, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("WARNING: redis at %s not reachable, will keep retrying", cfg.RedisAddr)
	}
	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)

	var uploader render.Uploader
	if cfg.CloudinaryEnabled() {
		uploader = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set), jobs will be skipped")
	}

	w := render.NewWorker(db, credential.NewCodec(cfg.QRSize), uploader)
	log.Println("worker started, waiting for messages...")
	if err := w.Run(ctx, q); err != nil {
		log.Fatalf("worker: %v", err)
	}
	log.Println("worker stopped")
}
