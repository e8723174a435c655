package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Slack holds CLI flags for the Slack application credentials
type Slack struct {
	clientID      string
	clientSecret  string
	signingSecret string
}

// Flags returns CLI flags for Slack configuration
func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-client-id",
			Usage:       "Slack OAuth client ID",
			Category:    "Slack",
			Sources:     cli.EnvVars("VIBES_SLACK_CLIENT_ID"),
			Destination: &x.clientID,
		},
		&cli.StringFlag{
			Name:        "slack-client-secret",
			Usage:       "Slack OAuth client secret",
			Category:    "Slack",
			Sources:     cli.EnvVars("VIBES_SLACK_CLIENT_SECRET"),
			Destination: &x.clientSecret,
		},
		&cli.StringFlag{
			Name:        "slack-signing-secret",
			Usage:       "Slack Signing Secret (for webhook verification)",
			Category:    "Slack",
			Sources:     cli.EnvVars("VIBES_SLACK_SIGNING_SECRET"),
			Destination: &x.signingSecret,
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("client-id.len", len(x.clientID)),
		slog.Int("client-secret.len", len(x.clientSecret)),
		slog.Int("signing-secret.len", len(x.signingSecret)),
	)
}

// IsConfigured reports whether the install flow can run
func (x *Slack) IsConfigured() bool {
	return x.clientID != "" && x.clientSecret != ""
}

// SigningSecret returns the webhook signing secret
func (x *Slack) SigningSecret() string {
	return x.signingSecret
}

// Configure builds the Slack application config for the install flow
func (x *Slack) Configure(baseURL string) (usecase.SlackAppConfig, error) {
	if !x.IsConfigured() {
		return usecase.SlackAppConfig{}, goerr.New("slack-client-id and slack-client-secret are required")
	}
	if baseURL == "" {
		return usecase.SlackAppConfig{}, goerr.New("base-url is required for the Slack install flow")
	}

	return usecase.SlackAppConfig{
		ClientID:     x.clientID,
		ClientSecret: x.clientSecret,
		RedirectURL:  baseURL + "/auth/slack",
	}, nil
}
