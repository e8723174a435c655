package usecase

import (
	"net/http"

	"github.com/secmon-lab/vibes/pkg/domain/interfaces"
	"github.com/secmon-lab/vibes/pkg/service/crypto"
	slacksvc "github.com/secmon-lab/vibes/pkg/service/slack"
	spotifysvc "github.com/secmon-lab/vibes/pkg/service/spotify"
)

// SlackAppConfig holds the Slack application credentials for the install flow
type SlackAppConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type UseCases struct {
	repo    interfaces.Repository
	crypto  *crypto.Service
	slack   slacksvc.Service
	spotify spotifysvc.Service

	slackApp   SlackAppConfig
	baseURL    string
	httpClient *http.Client
}

type Option func(*UseCases)

// WithSlackService sets the Slack API service
func WithSlackService(svc slacksvc.Service) Option {
	return func(uc *UseCases) {
		uc.slack = svc
	}
}

// WithSpotifyService sets the Spotify API service
func WithSpotifyService(svc spotifysvc.Service) Option {
	return func(uc *UseCases) {
		uc.spotify = svc
	}
}

// WithSlackApp sets the Slack application credentials for the install flow
func WithSlackApp(cfg SlackAppConfig) Option {
	return func(uc *UseCases) {
		uc.slackApp = cfg
	}
}

// WithBaseURL sets the public base URL used for redirects and links
func WithBaseURL(url string) Option {
	return func(uc *UseCases) {
		uc.baseURL = url
	}
}

// WithHTTPClient overrides the HTTP client for OAuth exchanges, used for testing
func WithHTTPClient(httpClient *http.Client) Option {
	return func(uc *UseCases) {
		uc.httpClient = httpClient
	}
}

func New(repo interfaces.Repository, cryptoSvc *crypto.Service, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:       repo,
		crypto:     cryptoSvc,
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
