package spotify

import (
	"context"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/interfaces"
	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/secmon-lab/vibes/pkg/service/crypto"
	"golang.org/x/oauth2"
	oauthspotify "golang.org/x/oauth2/spotify"
	"golang.org/x/time/rate"
)

const defaultAPIURL = "https://api.spotify.com/v1"

// scopes cover reading the current playback only
var scopes = []string{"user-read-currently-playing", "user-read-playback-state"}

// ErrPlaybackUnavailable tags failures that mean the user's playback cannot
// be read right now (expired grant, failed refresh). The poller counts these
// instead of treating them as fatal.
var ErrPlaybackUnavailable = goerr.New("spotify playback unavailable")

// Service reads the user's current playback and drives the OAuth connect
// flow. Stored tokens are encrypted; refreshed tokens are re-encrypted and
// persisted before use.
type Service interface {
	// GetPlayback returns the user's current playback, or (nil, nil) when
	// nothing is playing. Users without a Spotify grant also yield
	// (nil, nil).
	GetPlayback(ctx context.Context, user *model.User) (*model.PlaybackState, error)

	// AuthCodeURL builds the authorize URL for the connect flow
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for a token pair
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// Config holds the Spotify application credentials
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (x Config) Validate() error {
	if x.ClientID == "" {
		return goerr.New("spotify client ID is required")
	}
	if x.ClientSecret == "" {
		return goerr.New("spotify client secret is required")
	}
	return nil
}

type client struct {
	oauth      *oauth2.Config
	crypto     *crypto.Service
	users      interfaces.UserRepository
	httpClient *http.Client
	apiURL     string
	limiter    *rate.Limiter
}

// Option is a functional option for client configuration
type Option func(*client)

// WithHTTPClient overrides the HTTP client used for API calls
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// WithAPIURL overrides the Web API base URL, used for testing
func WithAPIURL(url string) Option {
	return func(c *client) {
		c.apiURL = url
	}
}

// WithTokenURL overrides the token endpoint, used for testing
func WithTokenURL(url string) Option {
	return func(c *client) {
		c.oauth.Endpoint.TokenURL = url
	}
}

// WithRateLimit overrides the outbound API pacing
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(c *client) {
		c.limiter = limiter
	}
}

func New(cfg Config, cryptoSvc *crypto.Service, users interfaces.UserRepository, opts ...Option) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cryptoSvc == nil {
		return nil, goerr.New("crypto service is required")
	}
	if users == nil {
		return nil, goerr.New("user repository is required")
	}

	c := &client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     oauthspotify.Endpoint,
		},
		crypto:     cryptoSvc,
		users:      users,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     defaultAPIURL,

		// Spotify allows bursts but throttles sustained traffic; pace
		// the poller fan-out below the documented ceiling.
		limiter: rate.NewLimiter(rate.Limit(10), 10),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

func (c *client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to exchange authorization code")
	}
	return token, nil
}
