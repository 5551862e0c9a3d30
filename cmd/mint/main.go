package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ubhp-protocol/agenthub/internal/auth"
)

func main() {
	secret := flag.String("secret", "", "JWT secret shared with the bridge")
	subject := flag.String("sub", "", "Token subject (caller identity)")
	issuer := flag.String("iss", "agenthub-mint", "Token issuer")
	ttl := flag.Duration("ttl", time.Hour, "Token lifetime")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "Usage: mint -secret <jwt-secret> [-sub <subject>] [-ttl 1h]")
		os.Exit(1)
	}

	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Subject:   *subject,
		Issuer:    *issuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(*ttl).Unix(),
	}, []byte(*secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Authorization: Bearer %s\n", token)
}
