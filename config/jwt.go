package config

import (
	"log/slog"
	"os"
)

// JwtKey signs verification tokens and validates incoming bearer tokens.
// Token issuance itself lives in the auth service; this backend only
// consumes tokens signed with the shared secret.
var JwtKey []byte

func LoadJwtKey() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slog.Error("JWT_SECRET environment variable is not set")
		os.Exit(1)
	}
	JwtKey = []byte(secret)
}
