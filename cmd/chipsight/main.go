package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"chipsight/config"
	"chipsight/engine"
	"chipsight/holdstate"
	"chipsight/messaging"
	"chipsight/store"
	"chipsight/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "chipsight.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("chipsight", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("chipsight: database open (%s)", cfg.Database.Driver)

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("chipsight: redis not available (%v), holds served from SQL only", err)
		redisClient.Close()
		redisClient = nil
	} else {
		log.Printf("chipsight: redis connected (%s)", cfg.Redis.Address)
		defer redisClient.Close()
	}
	cancel()

	// Drawing hold mirror
	holds := holdstate.New(db, redisClient)

	// Messaging client
	msgClient := messaging.NewClient(&cfg.Messaging)
	if err := msgClient.Connect(); err != nil {
		log.Printf("chipsight: messaging connect failed (%v)", err)
	} else {
		log.Printf("chipsight: messaging connected (%s)", cfg.Messaging.Backend)
	}
	defer msgClient.Close()

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		DB:         db,
		Holds:      holds,
		MsgClient:  msgClient,
	})
	eng.Start()
	defer eng.Stop()

	// Inbound commands (breakdowns and shift close from supervisor systems)
	consumer := messaging.NewConsumer(msgClient, cfg.Messaging.CommandsTopic, eng)
	if err := consumer.Start(); err != nil {
		log.Printf("chipsight: command consumer subscribe failed: %v", err)
	} else {
		log.Printf("chipsight: command consumer listening on %s", cfg.Messaging.CommandsTopic)
	}

	// Outbox drainer (outbound transitions and quality events)
	drainer := messaging.NewOutboxDrainer(db, msgClient, cfg.Messaging.OutboxDrainInterval)
	drainer.Start()
	defer drainer.Stop()

	// Web server
	handler, stopWeb := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("chipsight: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("chipsight: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("chipsight: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("chipsight: stopped")
}
