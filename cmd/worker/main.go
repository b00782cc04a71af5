package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/patient-intake/internal/config"
	"github.com/suPer8Hu/patient-intake/internal/consultation"
	"github.com/suPer8Hu/patient-intake/internal/db"
	"github.com/suPer8Hu/patient-intake/internal/store/rabbitmq"
)

const (
	maxRetries = 3
	retryDelay = 5 * time.Second
)

func workerConcurrency(n int) int {
	if n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()
	if cfg.RabbitURL == "" {
		log.Fatalf("RABBIT_URL is required for the worker")
	}

	gdb := db.Connect(cfg.DBDriver, cfg.DBDSN)
	repo := consultation.NewRepo(gdb)

	// retries go back out through the publisher
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit publisher: %v", err)
	}
	defer pub.Close()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	//  strict concurrency control
	concurrency := workerConcurrency(cfg.WorkerConcurrency)

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				ev, err := rabbitmq.DecodeCompleted(d.Body)
				if err != nil {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleCompleted(ctx, repo, ev); err != nil {
					attempt := rabbitmq.RetryCount(d.Headers) + 1
					log.Printf("worker=%d session=%s attempt=%d cost=%s err=%v",
						workerID, ev.SessionID, attempt, time.Since(start), err)
					if attempt <= maxRetries {
						if rerr := pub.Retry(ctx, ev, attempt, retryDelay); rerr == nil {
							_ = d.Ack(false)
							continue
						}
					}
					// dead-letter
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed session=%s err=%v", workerID, ev.SessionID, err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				close(jobs)
				wg.Wait()
				return
			}
			jobs <- d
		}
	}
}

// handleCompleted loads the finished consultation and its summary and logs a
// digest for downstream staff.
func handleCompleted(ctx context.Context, repo *consultation.Repo, ev rabbitmq.CompletedEvent) error {
	c, err := repo.GetBySessionID(ctx, ev.SessionID)
	if err != nil {
		return err
	}
	if !c.Completed {
		return fmt.Errorf("session %s not completed yet", ev.SessionID)
	}
	s, err := repo.GetSummary(ctx, ev.SessionID)
	if err != nil {
		return err
	}
	responses, err := repo.ListResponses(ctx, ev.SessionID)
	if err != nil {
		return err
	}

	name := ""
	if c.PatientName != nil {
		name = *c.PatientName
	}
	log.Printf("consultation_completed session=%s patient=%q symptoms=%v responses=%d key_findings=%d completed_at=%s",
		ev.SessionID, name, c.Symptoms(), len(responses),
		len(consultation.Strings(s.KeyFindings)), ev.CompletedAt.Format(time.RFC3339),
	)
	return nil
}
