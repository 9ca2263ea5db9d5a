// Worker consumes security events from Kafka, persists them when a database
// is configured, and pushes them to Loki. Set KAFKA_BROKERS plus at least one
// of LOKI_URL and DATABASE_URL.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"auth-control-plane/internal/config"
	"auth-control-plane/internal/db"
	"auth-control-plane/internal/telemetry/domain"
	"auth-control-plane/internal/telemetry/loki"
	telemetryrepo "auth-control-plane/internal/telemetry/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	if cfg.LokiURL == "" && cfg.DatabaseURL == "" {
		log.Fatal("worker: LOKI_URL or DATABASE_URL is required")
	}

	var events *telemetryrepo.PostgresRepository
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer conn.Close()
		events = telemetryrepo.NewPostgresRepository(conn)
	}
	lokiClient := loki.NewClient(cfg.LokiURL)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.SecurityKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	log.Printf("worker: consuming from %s (group %s)", cfg.SecurityKafkaTopic, cfg.KafkaGroupID)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("worker: stopped")
				return
			}
			log.Printf("worker: kafka read error: %v", err)
			continue
		}

		// Both sinks are best-effort; a bad or unreachable sink must not
		// stall the consumer group.
		if events != nil {
			var event domain.SecurityEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				log.Printf("worker: skip malformed event: %v", err)
			} else {
				saveCtx, saveCancel := context.WithTimeout(ctx, 10*time.Second)
				if err := events.Save(saveCtx, &event); err != nil {
					log.Printf("worker: persist failed: %v", err)
				}
				saveCancel()
			}
		}

		if lokiClient != nil {
			pushCtx, pushCancel := context.WithTimeout(ctx, 10*time.Second)
			if err := lokiClient.PushEventJSON(pushCtx, msg.Value); err != nil {
				log.Printf("worker: loki push failed: %v", err)
			}
			pushCancel()
		}
	}
}
