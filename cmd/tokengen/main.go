// Command tokengen mints bearer tokens for the auth front-end and security operators.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/joho/godotenv"
)

func main() {
	var (
		subject = flag.String("subject", "", "token subject, e.g. auth-frontend or an operator name")
		role    = flag.String("role", models.RoleService, "token role: service or admin")
		ttl     = flag.Duration("ttl", 0, "token lifetime; 0 issues a non-expiring token")
	)
	flag.Parse()

	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is required")
		os.Exit(2)
	}
	if *subject == "" {
		fmt.Fprintln(os.Stderr, "-subject is required")
		os.Exit(2)
	}
	if *role == models.RoleAdmin && (*ttl <= 0 || *ttl > 24*time.Hour) {
		fmt.Fprintln(os.Stderr, "admin tokens need a -ttl between 1s and 24h")
		os.Exit(2)
	}

	token, err := auth.NewTokenManager(secret).GenerateToken(*subject, *role, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
