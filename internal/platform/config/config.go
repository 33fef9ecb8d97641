package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration. FromEnv keeps main lean.
type Server struct {
	Addr          string
	PostgresDSN   string
	RedisAddr     string
	KafkaBrokers  []string
	AuditTopic    string
	JWTSigningKey string
	GrantTTL      time.Duration
}

// DefaultGrantTTL bounds contributor grants when the issuer does not pick one.
var DefaultGrantTTL = 14 * 24 * time.Hour

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("TRACEPORT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; override in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	grantTTL := DefaultGrantTTL
	if raw := os.Getenv("GRANT_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			grantTTL = parsed
		}
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	auditTopic := os.Getenv("AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "traceport.audit"
	}

	return Server{
		Addr:          addr,
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		KafkaBrokers:  brokers,
		AuditTopic:    auditTopic,
		JWTSigningKey: jwtSigningKey,
		GrantTTL:      grantTTL,
	}
}
