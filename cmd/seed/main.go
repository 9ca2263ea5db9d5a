// seed inserts development sample data for local testing: go run ./cmd/seed.
// Idempotent: skips inserts if the dev account (dev@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	accountdomain "auth-control-plane/internal/account/domain"
	accountrepo "auth-control-plane/internal/account/repository"
	clientdomain "auth-control-plane/internal/client/domain"
	clientrepo "auth-control-plane/internal/client/repository"
	"auth-control-plane/internal/config"
	"auth-control-plane/internal/db"
	policydomain "auth-control-plane/internal/policy/domain"
	policyrepo "auth-control-plane/internal/policy/repository"
	"auth-control-plane/internal/security"
)

// sampleScopePolicy widens the built-in scope check so that tokens carrying
// admin also pass write-scoped routes. Same package as the default policy in
// internal/policy/engine/opa_evaluator.go; loaded from scope_policies on boot.
const sampleScopePolicy = `package authz.scopes

allow if {
	some s in input.scopes
	s == "admin"
	input.required == "write"
}
`

const (
	devUsername = "dev"
	devEmail    = "dev@example.com"
	devPassword = "password123"
	devClientID = "dev-client"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Env == "production" {
		log.Fatal("seed: refusing to run with APP_ENV=production")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	accounts := accountrepo.NewPostgresRepository(conn)
	clients := clientrepo.NewPostgresRepository(conn)
	policies := policyrepo.NewPostgresRepository(conn)
	ctx := context.Background()

	existing, err := accounts.GetByEmail(ctx, devEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()

	if err := accounts.Create(ctx, &accountdomain.Account{
		ID:           uuid.New().String(),
		Username:     devUsername,
		Email:        devEmail,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}); err != nil {
		log.Fatalf("create dev account: %v", err)
	}

	clientSecret, err := security.NewOpaqueToken()
	if err != nil {
		log.Fatalf("generate client secret: %v", err)
	}
	secretHash, err := hasher.Hash([]byte(clientSecret))
	if err != nil {
		log.Fatalf("hash client secret: %v", err)
	}
	if err := clients.Create(ctx, &clientdomain.Client{
		ClientID:      devClientID,
		SecretHash:    secretHash,
		AllowedScopes: []string{"read", "write"},
		CreatedAt:     now,
	}); err != nil {
		log.Fatalf("create dev client: %v", err)
	}

	if err := policies.Create(ctx, &policydomain.ScopePolicy{
		ID:        uuid.New().String(),
		Name:      "admin-implies-write",
		Rules:     sampleScopePolicy,
		Enabled:   true,
		CreatedAt: now,
	}); err != nil {
		log.Fatalf("create scope policy: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev login: %s / %s\n", devUsername, devPassword)
	fmt.Printf("Dev client: %s / %s (shown once, store it now)\n", devClientID, clientSecret)
}
