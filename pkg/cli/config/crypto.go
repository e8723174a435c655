package config

import (
	"log/slog"

	"github.com/secmon-lab/vibes/pkg/service/crypto"
	"github.com/urfave/cli/v3"
)

// Crypto holds CLI flags for token encryption and state signing
type Crypto struct {
	encryptionKey string
	stateSecret   string
}

// Flags returns CLI flags for crypto configuration
func (x *Crypto) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "encryption-key",
			Usage:       "AES-256 key for OAuth token encryption (64 hex characters, see `vibes genkey`)",
			Category:    "Crypto",
			Required:    true,
			Sources:     cli.EnvVars("VIBES_ENCRYPTION_KEY"),
			Destination: &x.encryptionKey,
		},
		&cli.StringFlag{
			Name:        "state-secret",
			Usage:       "HMAC secret for OAuth state parameters",
			Category:    "Crypto",
			Required:    true,
			Sources:     cli.EnvVars("VIBES_STATE_SECRET"),
			Destination: &x.stateSecret,
		},
	}
}

func (x Crypto) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("encryption-key.len", len(x.encryptionKey)),
		slog.Int("state-secret.len", len(x.stateSecret)),
	)
}

// Configure builds the crypto service from the configured key material
func (x *Crypto) Configure() (*crypto.Service, error) {
	return crypto.New(x.encryptionKey, x.stateSecret)
}
