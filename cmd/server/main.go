package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/patient-intake/internal/config"
	"github.com/suPer8Hu/patient-intake/internal/consultation"
	"github.com/suPer8Hu/patient-intake/internal/db"
	"github.com/suPer8Hu/patient-intake/internal/httpapi"
	"github.com/suPer8Hu/patient-intake/internal/questionbank"
	"github.com/suPer8Hu/patient-intake/internal/store/rabbitmq"
	"github.com/suPer8Hu/patient-intake/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDriver, cfg.DBDSN)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.KnowledgeFile != "" {
		n, err := questionbank.NewDocumentStore(gdb).ImportFile(ctx, cfg.KnowledgeFile)
		if err != nil {
			log.Fatalf("import %s: %v", cfg.KnowledgeFile, err)
		}
		log.Printf("imported %d symptom documents from %s", n, cfg.KnowledgeFile)
	}

	var rds *redisstore.Store
	if cfg.RedisAddr != "" {
		rds = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.QuestionCacheTTL, cfg.SessionLockTTL)
		if err := rds.Ping(ctx); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		defer rds.Close()
	}

	var pub consultation.Publisher
	if cfg.RabbitURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatalf("rabbit publisher: %v", err)
		}
		defer p.Close()
		pub = p
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(gdb, cfg, rds, pub),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
