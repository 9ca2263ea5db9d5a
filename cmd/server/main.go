package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	accountrepo "auth-control-plane/internal/account/repository"
	"auth-control-plane/internal/audit"
	auditrepo "auth-control-plane/internal/audit/repository"
	authhandler "auth-control-plane/internal/auth/handler"
	authservice "auth-control-plane/internal/auth/service"
	clientrepo "auth-control-plane/internal/client/repository"
	"auth-control-plane/internal/config"
	"auth-control-plane/internal/db"
	"auth-control-plane/internal/db/migrate"
	healthhandler "auth-control-plane/internal/health/handler"
	oauthhandler "auth-control-plane/internal/oauth/handler"
	oauthservice "auth-control-plane/internal/oauth/service"
	"auth-control-plane/internal/policy/engine"
	policyrepo "auth-control-plane/internal/policy/repository"
	resourcehandler "auth-control-plane/internal/resource/handler"
	"auth-control-plane/internal/security"
	"auth-control-plane/internal/server"
	"auth-control-plane/internal/server/middleware"
	sessionrepo "auth-control-plane/internal/session/repository"
	"auth-control-plane/internal/telemetry"
	otelsetup "auth-control-plane/internal/telemetry/otel"
	"auth-control-plane/internal/telemetry/producer"
	tokenrepo "auth-control-plane/internal/token/repository"
	tokensvc "auth-control-plane/internal/token/service"
)

const serviceName = "auth-control-plane"

// tokenJanitorInterval is how often the in-memory token store sweeps
// expired entries when running without Postgres or Redis.
const tokenJanitorInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	provider, err := newTokenProvider(cfg)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, false)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	// Storage: Postgres when DATABASE_URL is set, in-memory otherwise.
	// REDIS_ADDR moves the session and refresh-token stores onto Redis.
	var (
		conn      *sql.DB
		accounts  accountrepo.Repository
		clients   clientrepo.Repository
		sessions  sessionrepo.Repository
		tokens    tokenrepo.Repository
		auditRepo auditrepo.Repository
	)
	if cfg.DatabaseURL != "" {
		conn, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer conn.Close()
		if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migrate: %v", err)
		}
		accounts = accountrepo.NewPostgresRepository(conn)
		clients = clientrepo.NewPostgresRepository(conn)
		sessions = sessionrepo.NewPostgresRepository(conn)
		tokens = tokenrepo.NewPostgresRepository(conn)
		auditRepo = auditrepo.NewPostgresRepository(conn)
	} else {
		accounts = accountrepo.NewMemoryRepository()
		clients = clientrepo.NewMemoryRepository()
		sessions = sessionrepo.NewMemoryRepository()
		tokens = tokenrepo.NewMemoryRepository(tokenJanitorInterval)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		sessions = sessionrepo.NewRedisRepository(rdb)
		tokens = tokenrepo.NewRedisRepository(rdb)
	}

	evaluator := newEvaluator(ctx, cfg, conn)

	var emitters telemetry.MultiEmitter
	var kafkaProducer *producer.KafkaProducer
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kafkaProducer, err = producer.NewKafkaProducer(brokers, cfg.SecurityKafkaTopic)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		emitters = append(emitters, kafkaProducer)
	}
	emitters = append(emitters, otelsetup.NewEventEmitter(providers.LoggerProvider))
	var emitter telemetry.EventEmitter = emitters

	hasher := security.NewHasher(cfg.BcryptCost)
	rotation := tokensvc.NewRotationService(tokens, sessions, provider, cfg.RefreshTTL())
	authSvc := authservice.NewAuthService(accounts, sessions, rotation, hasher, cfg.SessionTTL(), cfg.UserScopes())
	oauthSvc := oauthservice.NewOAuthService(clients, tokens, sessions, provider, hasher)

	var auditLogger audit.AuditLogger
	if auditRepo != nil {
		auditLogger = audit.NewLogger(auditRepo, middleware.ClientIP)
	}

	health := healthhandler.NewHandler()
	if conn != nil {
		health.AddCheck("database", conn.PingContext)
	}
	if rdb != nil {
		health.AddCheck("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	health.AddCheck("policy", evaluator.HealthCheck)

	router := server.NewRouter(server.Deps{
		Auth:           authhandler.NewHandler(authSvc, rotation, auditLogger, emitter, cfg.SessionCookie, cfg.CookieSecure()),
		OAuth:          oauthhandler.NewHandler(oauthSvc, auditLogger, emitter),
		Resource:       resourcehandler.NewHandler(evaluator),
		Health:         health,
		Tokens:         provider,
		AuditRepo:      auditRepo,
		Emitter:        emitter,
		RateLimiter:    middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		AllowedOrigins: cfg.CORSOrigins(),
	})

	if err := server.Serve(ctx, cfg.HTTPAddr, router); err != nil {
		log.Fatalf("serve: %v", err)
	}

	// In-flight emit goroutines outlive their requests; give them a window
	// before the Kafka writer and OTel exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Printf("kafka: close: %v", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel: shutdown: %v", err)
	}
}

// newTokenProvider builds the JWT provider from JWT_SECRET (HMAC) or a
// JWT_PRIVATE_KEY/JWT_PUBLIC_KEY pair (RSA or ECDSA). Config guarantees the
// two forms are mutually exclusive; serving requires one of them.
func newTokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	if cfg.JWTSecret != "" {
		return security.NewHMACTokenProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL()), nil
	}
	if cfg.JWTPrivateKey == "" {
		return nil, errors.New("JWT_SECRET or JWT_PRIVATE_KEY/JWT_PUBLIC_KEY must be set")
	}
	priv, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		return nil, err
	}
	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		return nil, err
	}
	return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL()), nil
}

// newEvaluator compiles the scope policy with overrides from
// SCOPE_POLICY_PATH and any enabled rows in scope_policies. A broken
// override must not take the server down, so compilation failures fall
// back to the built-in policy.
func newEvaluator(ctx context.Context, cfg *config.Config, conn *sql.DB) *engine.OPAEvaluator {
	var overrides []string
	if cfg.ScopePolicyPath != "" {
		data, err := os.ReadFile(cfg.ScopePolicyPath)
		if err != nil {
			log.Printf("policy: read %s: %v", cfg.ScopePolicyPath, err)
		} else {
			overrides = append(overrides, string(data))
		}
	}
	if conn != nil {
		stored, err := policyrepo.NewPostgresRepository(conn).ListEnabled(ctx)
		if err != nil {
			log.Printf("policy: load stored policies: %v", err)
		} else {
			for _, p := range stored {
				overrides = append(overrides, p.Rules)
			}
		}
	}

	evaluator, err := engine.NewOPAEvaluator(ctx, overrides...)
	if err == nil {
		return evaluator
	}
	log.Printf("policy: overrides rejected, using built-in policy: %v", err)
	evaluator, err = engine.NewOPAEvaluator(ctx)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}
	return evaluator
}
