package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/foodmarketplace/pkg/auth"
	"github.com/angelmondragon/foodmarketplace/pkg/config"
	"github.com/angelmondragon/foodmarketplace/pkg/logger"
)

// admin-token prints a bearer token for the catalog maintenance routes.
func main() {
	logg := logger.New(logger.Options{ServiceName: "admin-token", Output: os.Stderr})
	_ = godotenv.Load()

	subject := flag.String("sub", "", "who the token is issued to, e.g. an operator email")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	if !cfg.Admin.Enabled() {
		fmt.Fprintf(os.Stderr, "%s is not set; admin routes are disabled\n", config.EnvAdminJWTSecret)
		os.Exit(1)
	}

	token, err := auth.MintAdminToken(cfg.Admin, time.Now().UTC(), *subject)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to mint token: %v\n", err)
		os.Exit(1)
	}

	ctx := logg.WithFields(context.Background(), map[string]any{
		"sub": *subject,
		"ttl": cfg.Admin.TokenTTL.String(),
	})
	logg.Info(ctx, "admin token issued")
	fmt.Println(token)
}
