package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.JWTIssuer != "auth-control-plane" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "auth-control-plane")
	}
	if cfg.JWTAudience != "auth-api" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "auth-api")
	}
	if cfg.JWTAccessTTL != "15m" {
		t.Errorf("JWTAccessTTL = %q, want %q", cfg.JWTAccessTTL, "15m")
	}
	if cfg.JWTRefreshTTL != "168h" {
		t.Errorf("JWTRefreshTTL = %q, want %q", cfg.JWTRefreshTTL, "168h")
	}
	if cfg.JWTSessionTTL != "720h" {
		t.Errorf("JWTSessionTTL = %q, want %q", cfg.JWTSessionTTL, "720h")
	}
	if cfg.SessionCookie != "auth_session" {
		t.Errorf("SessionCookie = %q, want %q", cfg.SessionCookie, "auth_session")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.DefaultUserScopes != "read write" {
		t.Errorf("DefaultUserScopes = %q, want %q", cfg.DefaultUserScopes, "read write")
	}
	if cfg.RateLimitRPS != 10 {
		t.Errorf("RateLimitRPS = %v, want 10", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst != 20 {
		t.Errorf("RateLimitBurst = %d, want 20", cfg.RateLimitBurst)
	}
	if cfg.SecurityKafkaTopic != "auth-security-events" {
		t.Errorf("SecurityKafkaTopic = %q, want default", cfg.SecurityKafkaTopic)
	}
	if cfg.KafkaGroupID != "auth-security-worker" {
		t.Errorf("KafkaGroupID = %q, want default", cfg.KafkaGroupID)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "14")
	os.Setenv("DEFAULT_USER_SCOPES", "read")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	if scopes := cfg.UserScopes(); len(scopes) != 1 || scopes[0] != "read" {
		t.Errorf("UserScopes = %v, want [read]", scopes)
	}
}

func TestLoad_BcryptCostRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"valid middle", "12", 12, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 12, false}, // Should default to 12
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestLoad_JWTKeyExclusivity(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_SECRET", "dev-secret")
	os.Setenv("JWT_PRIVATE_KEY", "some-pem")
	os.Setenv("JWT_PUBLIC_KEY", "some-pem")

	if _, err := Load(); err == nil {
		t.Error("Load should reject JWT_SECRET combined with a key pair")
	}

	os.Clearenv()
	os.Setenv("JWT_PRIVATE_KEY", "some-pem")
	if _, err := Load(); err == nil {
		t.Error("Load should reject a private key without a public key")
	}

	os.Clearenv()
	os.Setenv("JWT_SECRET", "dev-secret")
	if _, err := Load(); err != nil {
		t.Errorf("Load with secret only: %v", err)
	}
}

func TestLoad_RateLimitValidation(t *testing.T) {
	os.Clearenv()
	os.Setenv("RATE_LIMIT_RPS", "0")
	if _, err := Load(); err == nil {
		t.Error("Load should reject RATE_LIMIT_RPS=0")
	}

	os.Clearenv()
	os.Setenv("RATE_LIMIT_BURST", "0")
	if _, err := Load(); err == nil {
		t.Error("Load should reject RATE_LIMIT_BURST=0")
	}
}

func TestAccessTTL(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"valid", "30m", 30 * time.Minute},
		{"invalid", "invalid", 15 * time.Minute},
		{"zero", "0", 15 * time.Minute},
		{"negative", "-5m", 15 * time.Minute},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("JWT_ACCESS_TTL", tc.value)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if ttl := cfg.AccessTTL(); ttl != tc.want {
				t.Errorf("AccessTTL = %v, want %v", ttl, tc.want)
			}
		})
	}
}

func TestRefreshTTL(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"valid", "336h", 14 * 24 * time.Hour},
		{"invalid", "invalid", 168 * time.Hour},
		{"negative", "-1h", 168 * time.Hour},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("REFRESH_TTL", tc.value)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if ttl := cfg.RefreshTTL(); ttl != tc.want {
				t.Errorf("RefreshTTL = %v, want %v", ttl, tc.want)
			}
		})
	}
}

func TestSessionTTL(t *testing.T) {
	os.Clearenv()
	os.Setenv("SESSION_TTL", "24h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.SessionTTL(); ttl != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want %v", ttl, 24*time.Hour)
	}

	os.Clearenv()
	os.Setenv("SESSION_TTL", "bogus")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.SessionTTL(); ttl != 720*time.Hour {
		t.Errorf("SessionTTL = %v, want %v (default)", ttl, 720*time.Hour)
	}
}

func TestCookieSecure(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "production")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.CookieSecure() {
		t.Error("CookieSecure should be true in production")
	}

	os.Clearenv()
	os.Setenv("APP_ENV", "development")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CookieSecure() {
		t.Error("CookieSecure should be false outside production")
	}
}

func TestKafkaBrokersList(t *testing.T) {
	os.Clearenv()
	os.Setenv("KAFKA_BROKERS", "localhost:9092, kafka-2:9092 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	brokers := cfg.KafkaBrokersList()
	if len(brokers) != 2 || brokers[0] != "localhost:9092" || brokers[1] != "kafka-2:9092" {
		t.Errorf("KafkaBrokersList = %v", brokers)
	}

	os.Clearenv()
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if brokers := cfg.KafkaBrokersList(); brokers != nil {
		t.Errorf("empty KAFKA_BROKERS: got %v, want nil", brokers)
	}
}
