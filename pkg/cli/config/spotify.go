package config

import (
	"log/slog"

	"github.com/secmon-lab/vibes/pkg/domain/interfaces"
	"github.com/secmon-lab/vibes/pkg/service/crypto"
	"github.com/secmon-lab/vibes/pkg/service/spotify"
	"github.com/urfave/cli/v3"
)

// Spotify holds CLI flags for the Spotify application credentials
type Spotify struct {
	clientID     string
	clientSecret string
}

// Flags returns CLI flags for Spotify configuration
func (x *Spotify) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "spotify-client-id",
			Usage:       "Spotify OAuth client ID",
			Category:    "Spotify",
			Sources:     cli.EnvVars("VIBES_SPOTIFY_CLIENT_ID"),
			Destination: &x.clientID,
		},
		&cli.StringFlag{
			Name:        "spotify-client-secret",
			Usage:       "Spotify OAuth client secret",
			Category:    "Spotify",
			Sources:     cli.EnvVars("VIBES_SPOTIFY_CLIENT_SECRET"),
			Destination: &x.clientSecret,
		},
	}
}

func (x Spotify) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("client-id.len", len(x.clientID)),
		slog.Int("client-secret.len", len(x.clientSecret)),
	)
}

// IsConfigured reports whether the Spotify connect flow can run
func (x *Spotify) IsConfigured() bool {
	return x.clientID != "" && x.clientSecret != ""
}

// Configure builds the Spotify service
func (x *Spotify) Configure(cryptoSvc *crypto.Service, users interfaces.UserRepository, baseURL string) (spotify.Service, error) {
	return spotify.New(spotify.Config{
		ClientID:     x.clientID,
		ClientSecret: x.clientSecret,
		RedirectURL:  baseURL + "/auth/spotify",
	}, cryptoSvc, users)
}
