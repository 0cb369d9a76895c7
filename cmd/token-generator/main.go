// token-generator mints a development JWT for a given user ID so the API can
// be exercised with curl before a real identity provider is wired in.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/athenus/review-api/internal/config"
	"github.com/athenus/review-api/internal/service/auth"
)

func main() {
	userFlag := flag.String("user", "", "user ID to mint a token for (default: random)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	userID := uuid.New()
	if *userFlag != "" {
		userID, err = uuid.Parse(*userFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid user ID %q: %v\n", *userFlag, err)
			os.Exit(1)
		}
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize JWT service: %v\n", err)
		os.Exit(1)
	}

	token, err := jwtService.GenerateToken(context.Background(), userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("User ID: %s\nToken:   %s\n", userID, token)
}
