package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/cli/config"
	httpctrl "github.com/secmon-lab/vibes/pkg/controller/http"
	"github.com/secmon-lab/vibes/pkg/service/slack"
	"github.com/secmon-lab/vibes/pkg/service/worker"
	"github.com/secmon-lab/vibes/pkg/usecase"
	"github.com/secmon-lab/vibes/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var baseURL string
	var pollInterval time.Duration
	var cryptoCfg config.Crypto
	var repoCfg config.Repository
	var slackCfg config.Slack
	var spotifyCfg config.Spotify

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("VIBES_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Public base URL of this server (e.g. https://vibes.example.com)",
			Sources:     cli.EnvVars("VIBES_BASE_URL"),
			Destination: &baseURL,
		},
		&cli.DurationFlag{
			Name:        "poll-interval",
			Usage:       "Spotify playback poll interval",
			Value:       worker.DefaultPollInterval,
			Sources:     cli.EnvVars("VIBES_POLL_INTERVAL"),
			Destination: &pollInterval,
		},
	}

	// Add shared config flags
	flags = append(flags, cryptoCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, spotifyCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server and playback poller",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cryptoSvc, err := cryptoCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure crypto service")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			slackSvc, err := slack.New(cryptoSvc)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize slack service")
			}

			slackApp, err := slackCfg.Configure(baseURL)
			if err != nil {
				return goerr.Wrap(err, "failed to configure slack app")
			}

			ucOpts := []usecase.Option{
				usecase.WithSlackService(slackSvc),
				usecase.WithSlackApp(slackApp),
				usecase.WithBaseURL(baseURL),
			}

			// Spotify is optional; without it the extension is the only
			// playback source and the poller stays off
			var poller *worker.Poller
			if spotifyCfg.IsConfigured() {
				spotifySvc, err := spotifyCfg.Configure(cryptoSvc, repo.User(), baseURL)
				if err != nil {
					return goerr.Wrap(err, "failed to initialize spotify service")
				}
				ucOpts = append(ucOpts, usecase.WithSpotifyService(spotifySvc))

				poller = worker.NewPoller(repo, spotifySvc, slackSvc,
					worker.WithInterval(pollInterval))
				if err := poller.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start playback poller")
				}
			} else {
				logging.Default().Info("Spotify credentials not configured, playback polling disabled")
			}

			uc := usecase.New(repo, cryptoSvc, ucOpts...)

			httpOpts := []httpctrl.Options{}
			if slackCfg.SigningSecret() != "" {
				httpOpts = append(httpOpts, httpctrl.WithSlackSigningSecret(slackCfg.SigningSecret()))
				logging.Default().Info("Slack webhook routes enabled")
			} else {
				logging.Default().Warn("Slack signing secret not configured, webhook routes disabled")
			}

			handler := httpctrl.New(uc, httpOpts...)
			defer handler.Close()

			server := &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr, "base_url", baseURL)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				if poller != nil {
					poller.Stop()
				}
				return err

			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				if poller != nil {
					poller.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
