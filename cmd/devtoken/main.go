// cmd/devtoken prints a bearer token for local development.
// Usage: go run ./cmd/devtoken -owner store-1 -user u1 -name Ana -role admin
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gestorpos/internal/config"
	"gestorpos/internal/middleware"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	owner := flag.String("owner", "store-1", "owner (store) the token acts for")
	userID := flag.String("user", "u1", "operator id")
	username := flag.String("name", "Dev Operator", "operator name")
	role := flag.String("role", "admin", "role claim")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is not set")
	}

	token, err := middleware.IssueToken(cfg.JWTSecret, middleware.JWTClaims{
		Owner:    *owner,
		UserID:   *userID,
		Username: *username,
		Role:     *role,
	}, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to sign token")
	}
	fmt.Println(token)
}
