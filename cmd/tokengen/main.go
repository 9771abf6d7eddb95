package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/driftchat/relay/internal/auth"
)

// tokengen mints a signed credential token for local testing against a
// running relay.
func main() {
	var (
		secret = flag.String("secret", os.Getenv("JWT_SECRET"), "signing secret (defaults to JWT_SECRET)")
		issuer = flag.String("issuer", "relay", "token issuer")
		userID = flag.String("user", "", "user id (random when empty)")
		name   = flag.String("name", "", "display name")
		ttl    = flag.Duration("ttl", 24*time.Hour, "token lifetime")
	)
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "a signing secret is required (-secret or JWT_SECRET)")
		os.Exit(1)
	}
	if *name == "" {
		fmt.Fprintln(os.Stderr, "a display name is required (-name)")
		os.Exit(1)
	}
	if *userID == "" {
		*userID = uuid.New().String()
	}

	manager := auth.NewTokenManager(*secret, *issuer, *ttl)
	token, err := manager.Issue(*userID, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
